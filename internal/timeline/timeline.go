// Package timeline turns one day's fixed classes and flexible events into an
// ordered list of class, gap and event entries.
package timeline

import (
	"errors"
	"fmt"
	"slices"

	appLog "studyplan/internal/log"
	"studyplan/internal/model"
)

// DefaultMinGapMinutes is the smallest idle window shown as a gap.
const DefaultMinGapMinutes = 10

// ErrOverlappingClasses means the class source produced two classes whose
// time ranges intersect.
var ErrOverlappingClasses = errors.New("timeline: overlapping classes")

// Options controls gap detection.
type Options struct {
	// MinGapMinutes drops idle windows shorter than this. Zero keeps every gap.
	MinGapMinutes int

	// Strict turns overlapping classes into an error instead of a logged warning.
	Strict bool
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{MinGapMinutes: DefaultMinGapMinutes}
}

type span struct {
	start, end model.Clock
	item       model.DayItem
	isClass    bool
}

// Build merges classes and events of a single date into a timeline.
//
// Timed entries are sorted by start, then end. A running cursor holds the
// latest end seen so far, and a GapEntry(cursor, next.start) is emitted only
// when the next entry starts after it, so items nested inside a longer one
// never produce phantom gaps. No gap is emitted before the first or after the
// last entry. Untimed events follow the timed entries in input order.
func Build(classes []model.Class, events []model.Event, opts Options) ([]model.DayItem, error) {
	timed := make([]span, 0, len(classes)+len(events))
	untimed := make([]model.DayItem, 0)

	for _, c := range classes {
		timed = append(timed, span{
			start:   c.StartTime,
			end:     max(c.EndTime, c.StartTime),
			item:    model.ClassEntry{Class: c},
			isClass: true,
		})
	}
	for _, ev := range events {
		end, ok := ev.End()
		if !ok {
			untimed = append(untimed, model.EventEntry{Event: ev})
			continue
		}
		timed = append(timed, span{start: *ev.Time, end: end, item: model.EventEntry{Event: ev}})
	}

	slices.SortStableFunc(timed, func(a, b span) int {
		if a.start != b.start {
			return int(a.start - b.start)
		}
		return int(a.end - b.end)
	})

	if err := checkClassOverlap(timed, opts.Strict); err != nil {
		return nil, err
	}

	out := make([]model.DayItem, 0, 2*len(timed)+len(untimed))
	var cursor model.Clock
	for i, s := range timed {
		if i > 0 && s.start > cursor {
			if minutes := int(s.start - cursor); minutes >= opts.MinGapMinutes {
				out = append(out, model.GapEntry{From: cursor, To: s.start, Minutes: minutes})
			}
		}
		out = append(out, s.item)
		if i == 0 || s.end > cursor {
			cursor = s.end
		}
	}

	return append(out, untimed...), nil
}

// checkClassOverlap expects timed to be sorted by start.
func checkClassOverlap(timed []span, strict bool) error {
	var prev *span
	for i := range timed {
		s := &timed[i]
		if !s.isClass {
			continue
		}
		if prev != nil && s.start < prev.end {
			a := prev.item.(model.ClassEntry).Class
			b := s.item.(model.ClassEntry).Class
			if strict {
				return fmt.Errorf("%w: %s (%s-%s) and %s (%s-%s)", ErrOverlappingClasses,
					a.ID, a.StartTime, a.EndTime, b.ID, b.StartTime, b.EndTime)
			}
			appLog.Warn("timeline: overlapping classes, gap suppressed",
				"class_a", a.ID, "class_b", b.ID,
				"a_end", a.EndTime.String(), "b_start", b.StartTime.String())
		}
		if prev == nil || s.end > prev.end {
			prev = s
		}
	}
	return nil
}

// FreeMinutes sums the gap durations of a timeline.
func FreeMinutes(items []model.DayItem) int {
	total := 0
	for _, it := range items {
		if g, ok := it.(model.GapEntry); ok {
			total += g.Minutes
		}
	}
	return total
}
