// Package planner computes weekly rebalancing plans for study tasks.
//
// Everything here is pure: callers pass in the events they fetched and apply
// the returned plan themselves. Weeks run Monday through Sunday.
package planner

import (
	"fmt"
	"slices"

	"studyplan/internal/model"
)

// Plan is the advisory output of one planning run.
type Plan struct {
	// MovedMissed holds past-due, incomplete tasks of the current week.
	MovedMissed []model.Event
	// PulledEarlier holds at most one next-week task to bring forward.
	PulledEarlier []model.Event
}

// Empty reports whether the plan proposes no changes.
func (p Plan) Empty() bool {
	return len(p.MovedMissed) == 0 && len(p.PulledEarlier) == 0
}

// PlanAdjustments inspects the current and next week relative to today.
//
// A task dated in the current week before today and not completed is missed
// and always rolls over. If some task dated after today in the current week is
// already completed, the best incomplete task of next week is proposed for
// pull-forward. Imported and system events are never considered.
func PlanAdjustments(today model.Date, currentWeek, nextWeek []model.Event) Plan {
	weekStart := today.WeekStart()
	weekEnd := today.WeekEnd()

	var plan Plan
	aheadOfPlan := false

	for _, ev := range currentWeek {
		if !ev.IsTask() || !ev.Date.Within(weekStart, weekEnd) {
			continue
		}
		switch {
		case ev.Date.Before(today) && !ev.IsCompleted:
			plan.MovedMissed = append(plan.MovedMissed, ev)
		case ev.Date.After(today) && ev.IsCompleted:
			aheadOfPlan = true
		}
	}

	if !aheadOfPlan {
		return plan
	}

	nextStart := weekStart.AddDays(7)
	nextEnd := weekEnd.AddDays(7)
	candidates := make([]model.Event, 0, len(nextWeek))
	for _, ev := range nextWeek {
		if ev.IsTask() && !ev.IsCompleted && ev.Date.Within(nextStart, nextEnd) {
			candidates = append(candidates, ev)
		}
	}
	if len(candidates) == 0 {
		return plan
	}

	slices.SortStableFunc(candidates, comparePullCandidates)
	plan.PulledEarlier = candidates[:1:1]
	return plan
}

// comparePullCandidates orders by preferred kind, then priority (high first),
// then date, then time of day with untimed events last.
func comparePullCandidates(a, b model.Event) int {
	if pa, pb := a.Kind.Preferred(), b.Kind.Preferred(); pa != pb {
		if pa {
			return -1
		}
		return 1
	}
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return rb - ra
	}
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
}

// FindOptimalDate returns the least loaded date between today and the end of
// today's week, counting the given events per date. Ties go to the earliest
// date, so an empty week yields today.
func FindOptimalDate(today model.Date, currentWeek []model.Event) model.Date {
	weekEnd := today.WeekEnd()

	counts := make(map[model.Date]int, 7)
	for _, ev := range currentWeek {
		counts[ev.Date]++
	}

	best := today
	bestCount := counts[today]
	for d := today.AddDays(1); !d.After(weekEnd); d = d.AddDays(1) {
		if c := counts[d]; c < bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

// RolloverPolicy decides where a missed task lands in the following week.
type RolloverPolicy string

const (
	// RolloverNextWeekStart moves every missed task to next Monday.
	RolloverNextWeekStart RolloverPolicy = "next_week_start"
	// RolloverSameWeekday keeps the task's weekday, one week later.
	RolloverSameWeekday RolloverPolicy = "same_weekday"
)

// ParseRolloverPolicy accepts the config spelling; empty means next week start.
func ParseRolloverPolicy(s string) (RolloverPolicy, error) {
	switch RolloverPolicy(s) {
	case "", RolloverNextWeekStart:
		return RolloverNextWeekStart, nil
	case RolloverSameWeekday:
		return RolloverSameWeekday, nil
	}
	return "", fmt.Errorf("unknown rollover policy %q", s)
}

// RolloverDate returns the new date for a missed event.
func RolloverDate(policy RolloverPolicy, today model.Date, ev model.Event) model.Date {
	if policy == RolloverSameWeekday {
		target := ev.Date.AddDays(7)
		// Still in the past when the task was missed by more than a week.
		for !target.After(today.WeekEnd()) {
			target = target.AddDays(7)
		}
		return target
	}
	return today.WeekStart().AddDays(7)
}
