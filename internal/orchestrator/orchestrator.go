// Package orchestrator coordinates one planning session: selected date, view
// mode, kind filters and the rebalancing pass that keeps tasks spread across
// the current and next week.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"studyplan/internal/classes"
	appLog "studyplan/internal/log"
	"studyplan/internal/model"
	"studyplan/internal/planner"
	"studyplan/internal/store"
)

// ErrInvalidViewMode is returned by SetViewMode and ParseViewMode.
var ErrInvalidViewMode = errors.New("orchestrator: invalid view mode")

type ViewMode string

const (
	ViewDay    ViewMode = "day"
	ViewWeek   ViewMode = "week"
	ViewMonth  ViewMode = "month"
	ViewAgenda ViewMode = "agenda"
)

func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(s); m {
	case ViewDay, ViewWeek, ViewMonth, ViewAgenda:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidViewMode, s)
}

// State is a copy of the session state.
type State struct {
	SelectedDate    model.Date   `json:"selected_date"`
	DisplayMonth    model.Date   `json:"display_month"`
	ViewMode        ViewMode     `json:"view_mode"`
	Filters         []model.Kind `json:"filters"`
	IsAdjustingPlan bool         `json:"is_adjusting_plan"`
	LastAdjustment  model.Date   `json:"last_adjustment,omitzero"`
}

// RebalanceResult describes one rebalancing pass. Skipped is set when another
// pass was already running; nothing was read or written in that case.
type RebalanceResult struct {
	Skipped bool          `json:"skipped"`
	Moved   []model.Event `json:"moved"`
	Pulled  *model.Event  `json:"pulled,omitempty"`
}

// Orchestrator owns the session state. All state lives behind mu; the busy
// flag is a skip-if-set guard, not a lock, so a second RunRebalance returns
// immediately instead of waiting.
type Orchestrator struct {
	store      store.ScheduleStore
	classes    classes.Source
	attendance store.AttendanceStore
	opts       options

	mu             sync.Mutex
	selected       model.Date
	displayMonth   model.Date
	view           ViewMode
	filters        map[model.Kind]struct{}
	busy           bool
	lastAdjustment model.Date

	watchMu  sync.Mutex
	watchers map[uint64]chan struct{}
	watchID  atomic.Uint64
}

// New creates an orchestrator showing today in day view. classes and
// attendance may be nil.
func New(st store.ScheduleStore, cs classes.Source, att store.AttendanceStore, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if cs == nil {
		cs = classes.Empty
	}
	today := model.Today(o.now())
	return &Orchestrator{
		store:        st,
		classes:      cs,
		attendance:   att,
		opts:         o,
		selected:     today,
		displayMonth: today.MonthStart(),
		view:         ViewDay,
		filters:      make(map[model.Kind]struct{}),
		watchers:     make(map[uint64]chan struct{}),
	}
}

// Today returns the current date according to the configured clock.
func (o *Orchestrator) Today() model.Date {
	return model.Today(o.opts.now())
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() State {
	filters := make([]model.Kind, 0, len(o.filters))
	for _, k := range model.Kinds {
		if _, ok := o.filters[k]; ok {
			filters = append(filters, k)
		}
	}
	return State{
		SelectedDate:    o.selected,
		DisplayMonth:    o.displayMonth,
		ViewMode:        o.view,
		Filters:         filters,
		IsAdjustingPlan: o.busy,
		LastAdjustment:  o.lastAdjustment,
	}
}

// SelectDate moves the selection; the displayed month follows it.
func (o *Orchestrator) SelectDate(d model.Date) {
	o.mu.Lock()
	o.selected = d
	o.displayMonth = d.MonthStart()
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) SetDisplayMonth(d model.Date) {
	o.mu.Lock()
	o.displayMonth = d.MonthStart()
	o.mu.Unlock()
	o.notify()
}

// SetFilters replaces the active kind filters. No kinds means show all.
func (o *Orchestrator) SetFilters(kinds ...model.Kind) {
	o.mu.Lock()
	o.filters = make(map[model.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		o.filters[k] = struct{}{}
	}
	o.mu.Unlock()
	o.notify()
}

// SetViewMode switches the view. Entering week view runs a rebalancing pass
// unless one already completed today; staying in week view never re-triggers.
func (o *Orchestrator) SetViewMode(ctx context.Context, mode ViewMode) (RebalanceResult, error) {
	if _, err := ParseViewMode(string(mode)); err != nil {
		return RebalanceResult{}, err
	}
	today := o.Today()

	o.mu.Lock()
	prev := o.view
	o.view = mode
	alreadyRan := o.lastAdjustment == today
	o.mu.Unlock()
	o.notify()

	if mode != ViewWeek || prev == ViewWeek || alreadyRan {
		return RebalanceResult{}, nil
	}
	appLog.Debug("orchestrator: week view opened, rebalancing", "today", today.String())
	return o.RunRebalance(ctx, today)
}

// Save assigns an id when missing, applies defaults and validates before
// writing. It returns the stored event.
func (o *Orchestrator) Save(ctx context.Context, ev model.Event) (model.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.DurationMinutes <= 0 {
		ev.DurationMinutes = o.opts.defaultDuration
	}
	ev = ev.WithDefaults()
	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}
	if err := o.store.Save(ctx, ev); err != nil {
		appLog.Error("orchestrator: save failed", err, "event_id", ev.ID)
		return model.Event{}, fmt.Errorf("save event %s: %w", ev.ID, err)
	}
	return ev, nil
}

func (o *Orchestrator) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := o.store.Delete(ctx, id)
	if err != nil {
		appLog.Error("orchestrator: delete failed", err, "event_id", id)
		return false, fmt.Errorf("delete event %s: %w", id, err)
	}
	return ok, nil
}

// UpdateCompletion toggles completion. Marking an event complete runs a
// rebalancing pass, since finishing early may allow a pull-forward. A failing
// pass is logged; the completion itself stays saved.
func (o *Orchestrator) UpdateCompletion(ctx context.Context, id string, completed bool) (bool, error) {
	ev, ok, err := o.store.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load event %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}
	ev.IsCompleted = completed
	if err := o.store.Update(ctx, ev); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("update event %s: %w", id, err)
	}

	if completed {
		if _, err := o.RunRebalance(ctx, o.Today()); err != nil {
			appLog.Warn("orchestrator: rebalance after completion failed", "event_id", id, "reason", err.Error())
		}
	}
	return true, nil
}

// SaveAttendance records attendance for a class on a date, overwriting any
// earlier record for the same pair.
func (o *Orchestrator) SaveAttendance(ctx context.Context, a model.ClassAttendance) error {
	if o.attendance == nil {
		return errors.New("orchestrator: no attendance store configured")
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = o.opts.now()
	}
	if err := a.Validate(); err != nil {
		return err
	}
	return o.attendance.SaveAttendance(ctx, a)
}

// RunRebalance executes one rebalancing pass for today. If a pass is already
// running the call returns at once with Skipped set.
//
// Both weeks are read fresh from the store at the start of every pass. Missed
// tasks roll over per the configured policy; at most one next-week task is
// pulled to the least loaded remaining day. A store failure aborts the pass
// and leaves moves already applied in place.
func (o *Orchestrator) RunRebalance(ctx context.Context, today model.Date) (res RebalanceResult, err error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		appLog.Info("orchestrator: rebalance skipped, pass in progress", "today", today.String())
		return RebalanceResult{Skipped: true}, nil
	}
	o.busy = true
	o.mu.Unlock()
	o.notify()

	// Runs on every exit path, panics included.
	finished := false
	defer func() {
		o.mu.Lock()
		o.busy = false
		if finished && err == nil {
			o.lastAdjustment = today
		}
		o.mu.Unlock()
		o.notify()
	}()

	if o.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.timeout)
		defer cancel()
	}

	appLog.Info("orchestrator: rebalance started", "today", today.String())
	current, next, err := o.fetchWeeks(ctx, today.WeekStart())
	if err != nil {
		appLog.Error("orchestrator: rebalance aborted", err, "today", today.String())
		return RebalanceResult{}, err
	}

	plan := planner.PlanAdjustments(today, current, next)
	res = RebalanceResult{Moved: make([]model.Event, 0, len(plan.MovedMissed))}
	if plan.Empty() {
		appLog.Debug("orchestrator: nothing to rebalance", "today", today.String())
		finished = true
		return res, nil
	}

	for _, ev := range plan.MovedMissed {
		target := planner.RolloverDate(o.opts.rollover, today, ev)
		moved, err := o.store.MoveEventDate(ctx, ev.ID, target)
		if err != nil {
			appLog.Error("orchestrator: rollover failed", err, "event_id", ev.ID, "moved", len(res.Moved))
			return res, fmt.Errorf("roll over %s: %w", ev.ID, err)
		}
		if !moved {
			appLog.Warn("orchestrator: missed task vanished before move", "event_id", ev.ID)
			continue
		}
		ev.Date = target
		res.Moved = append(res.Moved, ev)
	}

	if len(plan.PulledEarlier) > 0 {
		ev := plan.PulledEarlier[0]
		target := planner.FindOptimalDate(today, current)
		moved, err := o.store.MoveEventDate(ctx, ev.ID, target)
		if err != nil {
			appLog.Error("orchestrator: pull-forward failed", err, "event_id", ev.ID)
			return res, fmt.Errorf("pull forward %s: %w", ev.ID, err)
		}
		if moved {
			ev.Date = target
			res.Pulled = &ev
		}
	}

	appLog.Info("orchestrator: rebalance applied",
		"today", today.String(),
		"moved", len(res.Moved),
		"pulled", res.Pulled != nil,
	)
	finished = true
	return res, nil
}

// fetchWeeks loads the week starting at start and the following one.
func (o *Orchestrator) fetchWeeks(ctx context.Context, start model.Date) (current, next []model.Event, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		evs, err := o.store.EventsForWeek(gctx, start)
		if err != nil {
			return fmt.Errorf("load week %s: %w", start, err)
		}
		current = evs
		return nil
	})
	g.Go(func() error {
		nextStart := start.AddDays(7)
		evs, err := o.store.EventsForWeek(gctx, nextStart)
		if err != nil {
			return fmt.Errorf("load week %s: %w", nextStart, err)
		}
		next = evs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return current, next, nil
}

// filterLocked narrows evs to the active kinds. mu must be held.
func (o *Orchestrator) filterLocked(evs []model.Event) []model.Event {
	if len(o.filters) == 0 {
		return evs
	}
	return slices.DeleteFunc(slices.Clone(evs), func(ev model.Event) bool {
		_, ok := o.filters[ev.Kind]
		return !ok
	})
}

func (o *Orchestrator) filter(evs []model.Event) []model.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filterLocked(evs)
}
