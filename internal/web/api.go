package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"studyplan/internal/model"
	"studyplan/internal/orchestrator"
	"studyplan/internal/timeline"
)

var errBadRequest = errors.New("bad request")

// stateRequest changes session state. Absent fields are left alone.
type stateRequest struct {
	Date         *model.Date `json:"date"`
	DisplayMonth *model.Date `json:"display_month"`
	View         *string     `json:"view"`
	Filters      *[]string   `json:"filters"`
}

type stateResponse struct {
	State     orchestrator.State            `json:"state"`
	Rebalance *orchestrator.RebalanceResult `json:"rebalance,omitempty"`
}

// dayItemDTO flattens the timeline union with a "type" discriminator.
type dayItemDTO struct {
	Type       string                 `json:"type"`
	Start      *model.Clock           `json:"start,omitempty"`
	End        *model.Clock           `json:"end,omitempty"`
	Minutes    int                    `json:"minutes,omitempty"`
	Class      *model.Class           `json:"class,omitempty"`
	Attendance *model.ClassAttendance `json:"attendance,omitempty"`
	Event      *model.Event           `json:"event,omitempty"`
}

type dayResponse struct {
	Date        model.Date   `json:"date"`
	Items       []dayItemDTO `json:"items"`
	FreeMinutes int          `json:"free_minutes"`
}

type rangeResponse struct {
	From   model.Date    `json:"from"`
	To     model.Date    `json:"to"`
	Events []model.Event `json:"events"`
}

type completeRequest struct {
	Completed *bool `json:"completed"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// queryDate reads an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (model.Date, bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return model.Date{}, false, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, false, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return d, true, nil
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{State: s.orch.State()})
}

func (s *Server) handlePostState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}

	var filters []model.Kind
	if req.Filters != nil {
		filters = make([]model.Kind, 0, len(*req.Filters))
		for _, raw := range *req.Filters {
			k, err := model.ParseKind(raw)
			if err != nil {
				writeFailure(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
				return
			}
			filters = append(filters, k)
		}
	}
	var mode orchestrator.ViewMode
	if req.View != nil {
		m, err := orchestrator.ParseViewMode(*req.View)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		mode = m
	}

	if req.Date != nil {
		s.orch.SelectDate(*req.Date)
	}
	if req.DisplayMonth != nil {
		s.orch.SetDisplayMonth(*req.DisplayMonth)
	}
	if req.Filters != nil {
		s.orch.SetFilters(filters...)
	}

	resp := stateResponse{}
	if mode != "" {
		res, err := s.orch.SetViewMode(r.Context(), mode)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		if res.Skipped || res.Moved != nil {
			resp.Rebalance = &res
		}
	}
	resp.State = s.orch.State()
	writeJSON(w, http.StatusOK, resp)
}

// handleDay 는 하루 타임라인을 반환한다.
//
// Query:
//   - date: YYYY-MM-DD (생략 시 현재 선택된 날짜)
//
// 수업, 빈 시간(gap), 일정이 시작 시각 순으로 섞여 있고, 시간이 없는 일정은 맨 뒤에 붙는다.
// free_minutes 는 gap 들의 합이다.
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	d, ok, err := queryDate(r, "date")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if ok {
		s.orch.SelectDate(d)
	}

	items, err := s.orch.DayTimeline(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	resp := dayResponse{
		Date:        s.orch.State().SelectedDate,
		Items:       make([]dayItemDTO, 0, len(items)),
		FreeMinutes: timeline.FreeMinutes(items),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, toDTO(it))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	d, ok, err := queryDate(r, "date")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if ok {
		s.orch.SelectDate(d)
	}
	evs, err := s.orch.EventsForSelectedWeek(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	sel := s.orch.State().SelectedDate
	writeJSON(w, http.StatusOK, rangeResponse{From: sel.WeekStart(), To: sel.WeekEnd(), Events: evs})
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	d, ok, err := queryDate(r, "month")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if ok {
		s.orch.SetDisplayMonth(d)
	}
	evs, err := s.orch.MonthEvents(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	m := s.orch.State().DisplayMonth
	writeJSON(w, http.StatusOK, rangeResponse{From: m.MonthStart(), To: m.MonthEnd(), Events: evs})
}

func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	evs, err := s.orch.AgendaEvents(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	from := s.orch.State().SelectedDate
	writeJSON(w, http.StatusOK, rangeResponse{From: from, To: from.AddDays(orchestrator.AgendaDays - 1), Events: evs})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(r, &ev); err != nil {
		writeFailure(w, r, err)
		return
	}
	saved, err := s.orch.Save(r.Context(), ev)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	ok, err := s.orch.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}
	ok, err := s.orch.UpdateCompletion(r.Context(), r.PathValue("id"), completed)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "completed": completed})
}

// handleRebalance runs a pass for ?today= (default: the server's today).
// A busy orchestrator answers 409 with skipped=true.
func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	today, ok, err := queryDate(r, "today")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !ok {
		today = s.orch.Today()
	}
	res, err := s.orch.RunRebalance(r.Context(), today)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Skipped {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	var a model.ClassAttendance
	if err := decodeJSON(r, &a); err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := a.Validate(); err != nil {
		writeFailure(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.orch.SaveAttendance(r.Context(), a); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toDTO(it model.DayItem) dayItemDTO {
	start, end, _ := model.Span(it)
	dto := dayItemDTO{Type: model.ItemKind(it), Start: &start, End: &end}
	switch v := it.(type) {
	case model.ClassEntry:
		c := v.Class
		dto.Class = &c
		dto.Attendance = v.Attendance
		dto.Minutes = int(c.EndTime - c.StartTime)
	case model.GapEntry:
		dto.Minutes = v.Minutes
	case model.EventEntry:
		ev := v.Event
		dto.Event = &ev
		if ev.Time == nil {
			dto.Start, dto.End = nil, nil
		}
		dto.Minutes = ev.Duration()
	}
	return dto
}
