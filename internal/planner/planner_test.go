package planner

import (
	"testing"

	"studyplan/internal/model"
)

// 2025-06-18 is a Wednesday; its week runs 06-16..06-22.
var today = model.NewDate(2025, 6, 18)

func day(d int) model.Date {
	return model.NewDate(2025, 6, d)
}

func task(id string, date model.Date, completed bool) model.Event {
	return model.Event{
		ID:          id,
		Title:       id,
		Date:        date,
		Kind:        model.KindStudy,
		Priority:    model.PriorityMedium,
		SourceTag:   model.SourceTask,
		IsCompleted: completed,
	}
}

func ids(evs []model.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.ID)
	}
	return out
}

func sameIDs(a []model.Event, want ...string) bool {
	got := ids(a)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestPlanAdjustmentsNoop(t *testing.T) {
	current := []model.Event{
		task("done-past", day(16), true),
		task("today", day(18), false),
		task("future-open", day(20), false),
	}
	next := []model.Event{task("next", day(24), false)}

	plan := PlanAdjustments(today, current, next)
	if !plan.Empty() {
		t.Errorf("PlanAdjustments() = %+v, want empty plan", plan)
	}
}

func TestPlanAdjustmentsMissed(t *testing.T) {
	imported := task("imported", day(16), false)
	imported.SourceTag = model.SourceImported
	system := task("system", day(17), false)
	system.SourceTag = model.SourceSystem

	current := []model.Event{
		task("missed-mon", day(16), false),
		task("done-mon", day(16), true),
		task("missed-tue", day(17), false),
		imported,
		system,
		task("today-open", day(18), false),
		task("last-week", day(13), false),
	}

	plan := PlanAdjustments(today, current, nil)
	if !sameIDs(plan.MovedMissed, "missed-mon", "missed-tue") {
		t.Errorf("MovedMissed = %v, want [missed-mon missed-tue]", ids(plan.MovedMissed))
	}
	if len(plan.PulledEarlier) != 0 {
		t.Errorf("PulledEarlier = %v, want none", ids(plan.PulledEarlier))
	}
}

func TestPlanAdjustmentsPullForward(t *testing.T) {
	studyHigh := task("study-high", day(24), false)
	studyHigh.Priority = model.PriorityHigh
	sportLow := task("sport-low", day(25), false)
	sportLow.Kind = model.KindActivitySport
	sportLow.Priority = model.PriorityLow

	current := []model.Event{task("done-early", day(20), true)}
	plan := PlanAdjustments(today, current, []model.Event{sportLow, studyHigh})

	if !sameIDs(plan.PulledEarlier, "study-high") {
		t.Errorf("PulledEarlier = %v, want [study-high]", ids(plan.PulledEarlier))
	}
	if len(plan.MovedMissed) != 0 {
		t.Errorf("MovedMissed = %v, want none", ids(plan.MovedMissed))
	}
}

func TestPlanAdjustmentsPullRequiresEarlyCompletion(t *testing.T) {
	tests := []struct {
		name    string
		current []model.Event
		next    []model.Event
	}{
		{
			name:    "no completed future task",
			current: []model.Event{task("open", day(20), false)},
			next:    []model.Event{task("n1", day(24), false)},
		},
		{
			name:    "completed today does not count",
			current: []model.Event{task("today", day(18), true)},
			next:    []model.Event{task("n1", day(24), false)},
		},
		{
			name:    "next week all done",
			current: []model.Event{task("early", day(21), true)},
			next:    []model.Event{task("n1", day(24), true)},
		},
		{
			name: "next week has only imported events",
			current: []model.Event{task("early", day(21), true)},
			next: func() []model.Event {
				ev := task("n1", day(24), false)
				ev.SourceTag = model.SourceImported
				return []model.Event{ev}
			}(),
		},
		{
			name: "completed imported event does not count",
			current: func() []model.Event {
				ev := task("early", day(21), true)
				ev.SourceTag = model.SourceImported
				return []model.Event{ev}
			}(),
			next: []model.Event{task("n1", day(24), false)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanAdjustments(today, tt.current, tt.next)
			if len(plan.PulledEarlier) != 0 {
				t.Errorf("PulledEarlier = %v, want none", ids(plan.PulledEarlier))
			}
		})
	}
}

func TestPullCandidateOrdering(t *testing.T) {
	at := func(h int) *model.Clock {
		c := model.NewClock(h, 0)
		return &c
	}
	mk := func(id string, kind model.Kind, prio model.Priority, date model.Date, tm *model.Clock) model.Event {
		ev := task(id, date, false)
		ev.Kind = kind
		ev.Priority = prio
		ev.Time = tm
		return ev
	}

	tests := []struct {
		name string
		next []model.Event
		want string
	}{
		{
			name: "preferred kind beats priority",
			next: []model.Event{
				mk("sport-high", model.KindActivitySport, model.PriorityHigh, day(23), nil),
				mk("exam-low", model.KindExamFinal, model.PriorityLow, day(27), nil),
			},
			want: "exam-low",
		},
		{
			name: "higher priority first",
			next: []model.Event{
				mk("study-med", model.KindStudy, model.PriorityMedium, day(23), nil),
				mk("sub-high", model.KindSubmissionWeekly, model.PriorityHigh, day(26), nil),
			},
			want: "sub-high",
		},
		{
			name: "earlier date first",
			next: []model.Event{
				mk("thu", model.KindProject, model.PriorityMedium, day(26), nil),
				mk("tue", model.KindProject, model.PriorityMedium, day(24), nil),
			},
			want: "tue",
		},
		{
			name: "timed before untimed",
			next: []model.Event{
				mk("untimed", model.KindStudy, model.PriorityMedium, day(24), nil),
				mk("late", model.KindStudy, model.PriorityMedium, day(24), at(18)),
				mk("early", model.KindStudy, model.PriorityMedium, day(24), at(8)),
			},
			want: "early",
		},
		{
			name: "input order breaks full ties",
			next: []model.Event{
				mk("first", model.KindStudy, model.PriorityMedium, day(24), nil),
				mk("second", model.KindStudy, model.PriorityMedium, day(24), nil),
			},
			want: "first",
		},
	}

	current := []model.Event{task("early-done", day(22), true)}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanAdjustments(today, current, tt.next)
			if !sameIDs(plan.PulledEarlier, tt.want) {
				t.Errorf("PulledEarlier = %v, want [%s]", ids(plan.PulledEarlier), tt.want)
			}
		})
	}
}

func TestFindOptimalDate(t *testing.T) {
	tests := []struct {
		name   string
		today  model.Date
		events []model.Event
		want   model.Date
	}{
		{
			name:  "empty week picks today",
			today: today,
			want:  today,
		},
		{
			name:  "least loaded day",
			today: today,
			events: []model.Event{
				task("a", day(18), false),
				task("b", day(19), false),
				task("c", day(20), false),
				task("d", day(21), false),
				task("e", day(18), false),
			},
			want: day(22),
		},
		{
			name:  "tie goes to earliest",
			today: today,
			events: []model.Event{
				task("a", day(18), false),
				task("b", day(20), false),
			},
			want: day(19),
		},
		{
			name:  "past days are ignored",
			today: today,
			events: []model.Event{
				task("a", day(18), false),
				task("b", day(19), false),
				task("c", day(20), false),
				task("d", day(21), false),
				task("e", day(22), false),
			},
			want: day(18),
		},
		{
			name:   "sunday only has itself",
			today:  day(22),
			events: []model.Event{task("a", day(22), false), task("b", day(22), false)},
			want:   day(22),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindOptimalDate(tt.today, tt.events)
			if got != tt.want {
				t.Errorf("FindOptimalDate() = %v, want %v", got, tt.want)
			}
			if got.Before(tt.today) || got.After(tt.today.WeekEnd()) {
				t.Errorf("FindOptimalDate() = %v outside [%v, %v]", got, tt.today, tt.today.WeekEnd())
			}
		})
	}
}

func TestRolloverDate(t *testing.T) {
	missed := task("m", day(16), false)
	if got := RolloverDate(RolloverNextWeekStart, today, missed); got != day(23) {
		t.Errorf("next_week_start = %v, want 2025-06-23", got)
	}
	if got := RolloverDate(RolloverSameWeekday, today, missed); got != day(23) {
		t.Errorf("same_weekday for Monday = %v, want 2025-06-23", got)
	}
	tue := task("t", day(17), false)
	if got := RolloverDate(RolloverSameWeekday, today, tue); got != day(24) {
		t.Errorf("same_weekday for Tuesday = %v, want 2025-06-24", got)
	}
	if got := RolloverDate(RolloverNextWeekStart, today, tue); got != day(23) {
		t.Errorf("next_week_start for Tuesday = %v, want 2025-06-23", got)
	}

	if _, err := ParseRolloverPolicy("sometimes"); err == nil {
		t.Error("ParseRolloverPolicy() expected error")
	}
	if p, err := ParseRolloverPolicy(""); err != nil || p != RolloverNextWeekStart {
		t.Errorf("ParseRolloverPolicy(\"\") = %v, %v", p, err)
	}
}
