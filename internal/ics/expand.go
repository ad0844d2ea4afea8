package ics

import (
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "studyplan/internal/log"
	"studyplan/internal/model"
)

// Occurrence is one concrete instance of an Entry, in the display location.
type Occurrence struct {
	Entry
	Start time.Time
	End   time.Time
}

// OccurrencesOn expands entries into the instances that start on date.
// RRULE/EXDATE are honoured; RECURRENCE-ID overrides replace or move single
// instances. Results are sorted by start time.
func OccurrencesOn(entries []Entry, date model.Date, loc *time.Location) []Occurrence {
	if loc == nil {
		loc = time.Local
	}
	dayStart := date.In(loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	overrides := make(map[string][]Entry)
	bases := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsOverride() {
			overrides[e.UID] = append(overrides[e.UID], e)
		} else {
			bases = append(bases, e)
		}
	}

	out := make([]Occurrence, 0)
	for _, base := range bases {
		for _, start := range instanceStarts(base, dayStart, dayEnd) {
			duration := base.End.Sub(base.Start)
			if ov, ok := findOverride(overrides[base.UID], start); ok {
				// The override may have moved the instance to another day.
				if onDay(ov.Start.In(loc), dayStart, dayEnd) {
					out = append(out, occurrence(ov, ov.Start, ov.End, loc))
				}
				continue
			}
			out = append(out, occurrence(base, start, start.Add(duration), loc))
		}
	}

	// Overrides moved onto this day from an instance elsewhere.
	for _, ovs := range overrides {
		for _, ov := range ovs {
			if onDay(ov.Start.In(loc), dayStart, dayEnd) && !onDay(ov.Recurrence.In(loc), dayStart, dayEnd) {
				out = append(out, occurrence(ov, ov.Start, ov.End, loc))
			}
		}
	}

	slices.SortStableFunc(out, func(a, b Occurrence) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

func instanceStarts(e Entry, dayStart, dayEnd time.Time) []time.Time {
	if e.RawRRule == "" {
		if onDay(e.Start.In(dayStart.Location()), dayStart, dayEnd) {
			return []time.Time{e.Start}
		}
		return nil
	}

	r, err := rrule.StrToRRule(e.RawRRule)
	if err != nil {
		appLog.Warn("ics: bad RRULE ignored", "uid", e.UID, "rrule", e.RawRRule, "reason", err.Error())
		return nil
	}
	r.DTStart(e.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range e.ExDates {
		set.ExDate(ex.In(e.Start.Location()))
	}

	from := dayStart.In(e.Start.Location())
	to := dayEnd.Add(-time.Nanosecond).In(e.Start.Location())
	return set.Between(from, to, true)
}

func findOverride(ovs []Entry, start time.Time) (Entry, bool) {
	for _, ov := range ovs {
		if ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return Entry{}, false
}

func onDay(t, dayStart, dayEnd time.Time) bool {
	return !t.Before(dayStart) && t.Before(dayEnd)
}

func occurrence(e Entry, start, end time.Time, loc *time.Location) Occurrence {
	return Occurrence{Entry: e, Start: start.In(loc), End: end.In(loc)}
}
