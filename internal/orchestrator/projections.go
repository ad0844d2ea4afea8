package orchestrator

import (
	"context"
	"fmt"

	appLog "studyplan/internal/log"
	"studyplan/internal/model"
	"studyplan/internal/timeline"
)

// AgendaDays is the length of the agenda projection.
const AgendaDays = 14

func (o *Orchestrator) EventsForSelectedDate(ctx context.Context) ([]model.Event, error) {
	d := o.State().SelectedDate
	evs, err := o.store.EventsForDate(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("events for %s: %w", d, err)
	}
	return o.filter(evs), nil
}

// EventsForSelectedWeek covers Monday..Sunday around the selected date.
func (o *Orchestrator) EventsForSelectedWeek(ctx context.Context) ([]model.Event, error) {
	start := o.State().SelectedDate.WeekStart()
	evs, err := o.store.EventsForWeek(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("events for week %s: %w", start, err)
	}
	return o.filter(evs), nil
}

func (o *Orchestrator) MonthEvents(ctx context.Context) ([]model.Event, error) {
	month := o.State().DisplayMonth
	evs, err := o.store.EventsBetween(ctx, month.MonthStart(), month.MonthEnd())
	if err != nil {
		return nil, fmt.Errorf("events for month %s: %w", month, err)
	}
	return o.filter(evs), nil
}

// AgendaEvents lists the selected date and the following days.
func (o *Orchestrator) AgendaEvents(ctx context.Context) ([]model.Event, error) {
	from := o.State().SelectedDate
	evs, err := o.store.EventsBetween(ctx, from, from.AddDays(AgendaDays-1))
	if err != nil {
		return nil, fmt.Errorf("agenda from %s: %w", from, err)
	}
	return o.filter(evs), nil
}

// DayTimeline builds the selected date's timeline: classes annotated with
// their attendance record, filtered events, and the gaps between them.
func (o *Orchestrator) DayTimeline(ctx context.Context) ([]model.DayItem, error) {
	d := o.State().SelectedDate

	cs, err := o.classes.ClassesForDate(ctx, d)
	if err != nil {
		if cs == nil {
			return nil, fmt.Errorf("classes for %s: %w", d, err)
		}
		appLog.Warn("orchestrator: class source partially failed", "date", d.String(), "reason", err.Error())
	}
	evs, err := o.EventsForSelectedDate(ctx)
	if err != nil {
		return nil, err
	}

	items, err := timeline.Build(cs, evs, o.opts.timeline)
	if err != nil {
		return nil, fmt.Errorf("timeline for %s: %w", d, err)
	}

	if o.attendance == nil {
		return items, nil
	}
	records, err := o.attendance.RecordsForDate(ctx, d)
	if err != nil {
		// Attendance is decoration only.
		appLog.Warn("orchestrator: attendance unavailable", "date", d.String(), "reason", err.Error())
		return items, nil
	}
	byClass := make(map[string]model.ClassAttendance, len(records))
	for _, r := range records {
		byClass[r.ClassID] = r
	}
	for i, it := range items {
		ce, ok := it.(model.ClassEntry)
		if !ok {
			continue
		}
		if r, ok := byClass[ce.Class.ID]; ok {
			ce.Attendance = &r
			items[i] = ce
		}
	}
	return items, nil
}
