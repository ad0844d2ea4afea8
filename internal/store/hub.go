package store

import (
	"sync"
	"sync/atomic"

	"studyplan/internal/model"
)

// hub fans out event snapshots to subscribers. Each subscriber channel has a
// single slot holding the latest snapshot; older undelivered snapshots are
// replaced so a slow reader never blocks a write.
type hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan []model.Event
	nextID atomic.Uint64
}

func newHub() *hub {
	return &hub{subs: make(map[uint64]chan []model.Event)}
}

func (h *hub) subscribe(initial []model.Event) (<-chan []model.Event, func()) {
	ch := make(chan []model.Event, 1)
	ch <- initial

	id := h.nextID.Add(1)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *hub) publish(snapshot []model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		// Drop any stale value still waiting, then deliver the new one.
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (h *hub) active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs) > 0
}
