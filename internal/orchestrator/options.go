package orchestrator

import (
	"time"

	"studyplan/internal/model"
	"studyplan/internal/planner"
	"studyplan/internal/timeline"
)

type options struct {
	now             func() time.Time
	timeline        timeline.Options
	rollover        planner.RolloverPolicy
	timeout         time.Duration
	defaultDuration int
}

func defaultOptions() options {
	return options{
		now:             time.Now,
		timeline:        timeline.DefaultOptions(),
		rollover:        planner.RolloverNextWeekStart,
		defaultDuration: model.DefaultDurationMinutes,
	}
}

// Option configures an Orchestrator.
type Option func(*options)

// WithClock replaces time.Now; used to pin "today" in tests and CLI runs.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMinGap sets the shortest idle window shown in day timelines.
func WithMinGap(minutes int) Option {
	return func(o *options) {
		if minutes >= 0 {
			o.timeline.MinGapMinutes = minutes
		}
	}
}

// WithStrictTimeline makes overlapping classes fail DayTimeline.
func WithStrictTimeline(strict bool) Option {
	return func(o *options) { o.timeline.Strict = strict }
}

func WithRollover(p planner.RolloverPolicy) Option {
	return func(o *options) {
		if p != "" {
			o.rollover = p
		}
	}
}

// WithRebalanceTimeout bounds one rebalancing pass. Zero disables the bound.
func WithRebalanceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.timeout = d
		}
	}
}

// WithDefaultDuration sets the duration given to saved events without one.
func WithDefaultDuration(minutes int) Option {
	return func(o *options) {
		if minutes > 0 {
			o.defaultDuration = minutes
		}
	}
}
