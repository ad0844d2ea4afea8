package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"studyplan/internal/config"
	appLog "studyplan/internal/log"
	"studyplan/internal/model"
	"studyplan/internal/orchestrator"
	"studyplan/internal/store"
)

// Server exposes the planning session as a JSON API.
type Server struct {
	cfg  *config.Config
	orch *orchestrator.Orchestrator
	mux  *http.ServeMux

	db        Pinger
	timetable func() time.Time
	jobs      func() map[string]time.Time
}

// Pinger is a backend that can report whether it answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option adds a component to the /health report.
type Option func(*Server)

// WithDatabase pings db on every /health request; a failure answers 503.
func WithDatabase(db Pinger) Option {
	return func(s *Server) { s.db = db }
}

// WithTimetable reports when the timetable feeds were last refreshed.
func WithTimetable(refreshedAt func() time.Time) Option {
	return func(s *Server) { s.timetable = refreshedAt }
}

// WithJobs reports the next run of each background job.
func WithJobs(next func() map[string]time.Time) Option {
	return func(s *Server) { s.jobs = next }
}

func NewServer(cfg *config.Config, orch *orchestrator.Orchestrator, opts ...Option) *Server {
	s := &Server{
		cfg:  cfg,
		orch: orch,
		mux:  http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the mux, wrapped with Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled treats an empty username or password as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health 는 항상 무인증으로 노출한다. (모니터링/로드밸런서용)
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="studyplan", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// registerRoutes 는 JSON API 라우트만 등록한다.
// 읽기 전용 뷰(day/week/month/agenda)는 ?date= 로 선택 날짜를 바꾼 뒤 조회하고,
// 쓰기 요청(events/attendance/rebalance)은 모두 orchestrator 를 거친다.
// 정적 UI 는 제공하지 않는다.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleGetState)
	s.mux.HandleFunc("POST /api/state", s.handlePostState)
	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("GET /api/month", s.handleMonth)
	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("POST /api/events/{id}/complete", s.handleComplete)
	s.mux.HandleFunc("POST /api/rebalance", s.handleRebalance)
	s.mux.HandleFunc("POST /api/attendance", s.handleAttendance)
}

type healthResponse struct {
	Status               string               `json:"status"`
	Database             string               `json:"database,omitempty"`
	TimetableRefreshedAt *time.Time           `json:"timetable_refreshed_at,omitempty"`
	NextRuns             map[string]time.Time `json:"next_runs,omitempty"`
}

// handleHealth 는 등록된 구성요소만 보고한다.
//   - database: SQLite 사용 시 ping 결과. 실패하면 503 + status=degraded
//   - timetable_refreshed_at: 시간표 피드가 마지막으로 교체된 시각
//   - next_runs: 백그라운드 작업별 다음 실행 시각 (scheduler 시작 전에는 zero)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			appLog.Warn("health: database ping failed", "reason", err.Error())
			resp.Status, resp.Database = "degraded", "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	// Zero means the feeds have not loaded yet.
	if s.timetable != nil {
		if at := s.timetable(); !at.IsZero() {
			resp.TimetableRefreshedAt = &at
		}
	}
	if s.jobs != nil {
		resp.NextRuns = s.jobs()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeFailure maps domain errors to HTTP status codes.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidEvent), errors.Is(err, orchestrator.ErrInvalidViewMode), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		appLog.Error("api request failed", err, "method", r.Method, "path", r.URL.Path)
	}
	writeError(w, status, err.Error())
}
