package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"studyplan/internal/model"
)

// MemoryStore is an in-process ScheduleStore and AttendanceStore.
// It is safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	events     map[string]model.Event
	order      []string // creation order of ids
	attendance map[string]model.ClassAttendance
	hub        *hub
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:     make(map[string]model.Event),
		attendance: make(map[string]model.ClassAttendance),
		hub:        newHub(),
	}
}

func (s *MemoryStore) Save(ctx context.Context, ev model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(ev)
	s.publishLocked()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, ev model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; !ok {
		return fmt.Errorf("update %s: %w", ev.ID, ErrNotFound)
	}
	s.events[ev.ID] = ev
	s.publishLocked()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return false, nil
	}
	delete(s.events, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.publishLocked()
	return true, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (model.Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Event{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	return ev, ok, nil
}

func (s *MemoryStore) EventsBetween(ctx context.Context, start, end model.Date) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0)
	for _, id := range s.order {
		if ev := s.events[id]; ev.Date.Within(start, end) {
			out = append(out, ev)
		}
	}
	sortEvents(out)
	return out, nil
}

func (s *MemoryStore) MoveEventDate(ctx context.Context, id string, date model.Date) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return false, nil
	}
	ev.Date = date
	s.events[id] = ev
	s.publishLocked()
	return true, nil
}

func (s *MemoryStore) EventsForDate(ctx context.Context, date model.Date) ([]model.Event, error) {
	return s.EventsBetween(ctx, date, date)
}

func (s *MemoryStore) EventsForWeek(ctx context.Context, start model.Date) ([]model.Event, error) {
	return s.EventsBetween(ctx, start, start.AddDays(6))
}

func (s *MemoryStore) ImportEvents(ctx context.Context, evs []model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range evs {
		s.put(ev)
	}
	s.publishLocked()
	return nil
}

func (s *MemoryStore) Subscribe() (<-chan []model.Event, func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub.subscribe(s.snapshotLocked())
}

func (s *MemoryStore) SaveAttendance(ctx context.Context, a model.ClassAttendance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance[a.Key()] = a
	return nil
}

func (s *MemoryStore) RecordsForDate(ctx context.Context, date model.Date) ([]model.ClassAttendance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ClassAttendance, 0)
	for _, a := range s.attendance {
		if a.Date == date {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.ClassAttendance) int {
		return strings.Compare(a.ClassID, b.ClassID)
	})
	return out, nil
}

// put inserts or replaces ev, keeping the original creation slot on replace.
func (s *MemoryStore) put(ev model.Event) {
	if _, exists := s.events[ev.ID]; !exists {
		s.order = append(s.order, ev.ID)
	}
	s.events[ev.ID] = ev
}

func (s *MemoryStore) snapshotLocked() []model.Event {
	out := make([]model.Event, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.events[id])
	}
	sortEvents(out)
	return out
}

func (s *MemoryStore) publishLocked() {
	if s.hub.active() {
		s.hub.publish(s.snapshotLocked())
	}
}
