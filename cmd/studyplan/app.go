package main

import (
	"fmt"
	"net/http"
	"time"

	"studyplan/internal/classes"
	"studyplan/internal/config"
	"studyplan/internal/ics"
	appLog "studyplan/internal/log"
	"studyplan/internal/orchestrator"
	"studyplan/internal/store"
)

type backend interface {
	store.ScheduleStore
	store.AttendanceStore
}

// app holds the wired components shared by every subcommand.
type app struct {
	cfg   *config.Config
	store backend
	feeds *classes.Feeds
	orch  *orchestrator.Orchestrator
	close func() error
}

func openStore(cfg *config.Config) (backend, func() error, error) {
	if cfg.Database == "" || cfg.Database == ":memory:" {
		appLog.Warn("using in-memory store; events are lost on exit")
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
	st, err := store.OpenSQLite(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

func newApp(cfg *config.Config, extra ...orchestrator.Option) (*app, error) {
	st, closeFn, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	slots, err := cfg.Slots()
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	weekly, err := classes.NewWeekly(slots)
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("timetable classes: %w", err)
	}
	fetcher := ics.NewFetcher(cfg.Timetable.CacheDir, &http.Client{Timeout: 30 * time.Second})
	feeds := classes.NewFeeds(fetcher, cfg.Feeds(), time.Local)

	opts := []orchestrator.Option{
		orchestrator.WithMinGap(cfg.Planner.MinGapMinutes),
		orchestrator.WithStrictTimeline(cfg.Planner.StrictTimeline),
		orchestrator.WithRollover(cfg.Rollover()),
		orchestrator.WithRebalanceTimeout(cfg.RebalanceTimeout()),
		orchestrator.WithDefaultDuration(cfg.Planner.DefaultDurationMinutes),
	}
	orch := orchestrator.New(st, classes.Merge(weekly, feeds), st, append(opts, extra...)...)

	return &app{cfg: cfg, store: st, feeds: feeds, orch: orch, close: closeFn}, nil
}
