package orchestrator

import (
	"context"

	"studyplan/internal/model"
)

// Snapshot is what a watcher sees after a store or state change.
type Snapshot struct {
	State State         `json:"state"`
	Day   []model.Event `json:"day"`
	Week  []model.Event `json:"week"`
}

// Watch streams snapshots of the selected day and week. One is sent at once,
// then another after every store write or state change. Only the latest
// snapshot is kept for a slow reader. The channel closes when ctx ends.
func (o *Orchestrator) Watch(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	events, cancelSub := o.store.Subscribe()

	id := o.watchID.Add(1)
	changed := make(chan struct{}, 1)
	o.watchMu.Lock()
	o.watchers[id] = changed
	o.watchMu.Unlock()

	go func() {
		defer close(out)
		defer cancelSub()
		defer func() {
			o.watchMu.Lock()
			delete(o.watchers, id)
			o.watchMu.Unlock()
		}()

		var all []model.Event
		for {
			select {
			case <-ctx.Done():
				return
			case evs, ok := <-events:
				if !ok {
					return
				}
				all = evs
			case <-changed:
				if all == nil {
					continue
				}
			}

			snap := o.snapshot(all)
			select {
			case <-out:
			default:
			}
			out <- snap
		}
	}()
	return out
}

// snapshot projects the full event list through the current state.
func (o *Orchestrator) snapshot(all []model.Event) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.stateLocked()
	weekStart, weekEnd := st.SelectedDate.WeekStart(), st.SelectedDate.WeekEnd()
	day := make([]model.Event, 0)
	week := make([]model.Event, 0)
	for _, ev := range all {
		if ev.Date == st.SelectedDate {
			day = append(day, ev)
		}
		if ev.Date.Within(weekStart, weekEnd) {
			week = append(week, ev)
		}
	}
	return Snapshot{
		State: st,
		Day:   o.filterLocked(day),
		Week:  o.filterLocked(week),
	}
}

// notify wakes every watcher without blocking.
func (o *Orchestrator) notify() {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	for _, ch := range o.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
