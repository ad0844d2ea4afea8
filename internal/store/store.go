// Package store persists schedule events and class attendance.
//
// Two backends are provided: an in-memory store for tests and ephemeral
// sessions, and a SQLite store built on gorm. Both publish the full event
// list to subscribers after every write.
package store

import (
	"context"
	"errors"
	"slices"

	"studyplan/internal/model"
)

var (
	// ErrNotFound is returned by Update for an unknown id. Lookups and moves
	// report a missing id with a false result instead.
	ErrNotFound = errors.New("store: event not found")

	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// ScheduleStore holds schedule events.
type ScheduleStore interface {
	Save(ctx context.Context, ev model.Event) error
	Update(ctx context.Context, ev model.Event) error
	// Delete reports whether an event was removed.
	Delete(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (model.Event, bool, error)
	// EventsBetween returns events dated in the inclusive range.
	EventsBetween(ctx context.Context, start, end model.Date) ([]model.Event, error)
	// MoveEventDate changes only the date; false means the id is unknown.
	MoveEventDate(ctx context.Context, id string, date model.Date) (bool, error)
	EventsForDate(ctx context.Context, date model.Date) ([]model.Event, error)
	// EventsForWeek returns the seven days starting at start.
	EventsForWeek(ctx context.Context, start model.Date) ([]model.Event, error)
	// ImportEvents inserts or replaces events by id.
	ImportEvents(ctx context.Context, evs []model.Event) error
	// Subscribe streams the full event list after each change, starting with
	// the current contents. Call cancel to stop.
	Subscribe() (<-chan []model.Event, func())
}

// AttendanceStore holds per-day class attendance.
type AttendanceStore interface {
	SaveAttendance(ctx context.Context, a model.ClassAttendance) error
	RecordsForDate(ctx context.Context, date model.Date) ([]model.ClassAttendance, error)
}

// sortEvents orders by date, then time of day (untimed last). The sort is
// stable so callers keep creation order among equal keys.
func sortEvents(evs []model.Event) {
	slices.SortStableFunc(evs, func(a, b model.Event) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		switch {
		case a.Time == nil && b.Time == nil:
			return 0
		case a.Time == nil:
			return 1
		case b.Time == nil:
			return -1
		}
		return int(*a.Time - *b.Time)
	})
}
