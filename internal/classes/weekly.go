package classes

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"studyplan/internal/model"
)

// Slot is a recurring course slot, e.g. "Algorithms, Mon+Wed 08:00-09:30".
type Slot struct {
	Class model.Class
	// RRule is an RFC 5545 recurrence rule without DTSTART,
	// e.g. "FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20250731T000000Z".
	RRule string
	// From is the first date the rule may fire on.
	From model.Date
}

type compiledSlot struct {
	class model.Class
	rule  *rrule.RRule
}

// Weekly is a Source backed by fixed recurring slots.
type Weekly struct {
	slots []compiledSlot
}

// NewWeekly compiles every slot's rule up front so bad config fails at start-up.
func NewWeekly(slots []Slot) (*Weekly, error) {
	w := &Weekly{slots: make([]compiledSlot, 0, len(slots))}
	for _, s := range slots {
		if s.Class.ID == "" {
			return nil, fmt.Errorf("classes: slot %q has no id", s.Class.CourseName)
		}
		if s.Class.EndTime <= s.Class.StartTime {
			return nil, fmt.Errorf("classes: slot %s ends before it starts", s.Class.ID)
		}
		if s.From.IsZero() {
			return nil, fmt.Errorf("classes: slot %s has no start date", s.Class.ID)
		}
		opt, err := rrule.StrToROption(s.RRule)
		if err != nil {
			return nil, fmt.Errorf("classes: slot %s: %w", s.Class.ID, err)
		}
		opt.Dtstart = s.From.Time()
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("classes: slot %s: %w", s.Class.ID, err)
		}
		w.slots = append(w.slots, compiledSlot{class: s.Class, rule: r})
	}
	return w, nil
}

func (w *Weekly) ClassesForDate(_ context.Context, date model.Date) ([]model.Class, error) {
	dayStart := date.Time()
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)

	out := make([]model.Class, 0)
	for _, s := range w.slots {
		if len(s.rule.Between(dayStart, dayEnd, true)) > 0 {
			out = append(out, s.class)
		}
	}
	SortByStart(out)
	return out, nil
}
