package ics

import (
	"strings"
	"time"

	appLog "studyplan/internal/log"
	"studyplan/internal/model"
)

// ToClass maps a timetable occurrence to a Class. The class id is the UID, so
// attendance records stay attached to the same course slot across weeks.
func ToClass(o Occurrence) model.Class {
	end := model.ClockOf(o.End)
	if o.End.YearDay() != o.Start.YearDay() || o.End.Year() != o.Start.Year() {
		end = model.MinutesPerDay
	}
	return model.Class{
		ID:         o.UID,
		CourseName: o.Summary,
		StartTime:  model.ClockOf(o.Start),
		EndTime:    end,
		Type:       classType(o.Entry),
		Location:   o.Location,
		Instructor: instructor(o.Description),
	}
}

// classType looks at CATEGORIES first, then at keywords in the summary.
func classType(e Entry) model.ClassType {
	for _, t := range []model.ClassType{model.ClassLab, model.ClassExercise, model.ClassProject, model.ClassLecture} {
		if e.HasCategory(string(t)) {
			return t
		}
	}
	s := strings.ToLower(e.Summary)
	switch {
	case strings.Contains(s, "lab"):
		return model.ClassLab
	case strings.Contains(s, "exercise"), strings.Contains(s, "tutorial"), strings.Contains(s, "übung"):
		return model.ClassExercise
	case strings.Contains(s, "project"):
		return model.ClassProject
	}
	return model.ClassLecture
}

// instructor picks the value of an "Instructor:" or "Lecturer:" line.
func instructor(desc string) string {
	for _, line := range strings.Split(desc, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "instructor", "lecturer", "teacher":
			return strings.TrimSpace(val)
		}
	}
	return ""
}

// ToEvents converts parsed entries into schedule events for import.
// Entries tagged with the "task" category become movable tasks; all others
// are imported events that rebalancing leaves alone. Recurring entries are
// skipped because events are never expanded.
func ToEvents(entries []Entry, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	out := make([]model.Event, 0, len(entries))
	for _, e := range entries {
		if e.RawRRule != "" {
			appLog.Warn("ics: recurring entry not imported", "uid", e.UID, "summary", e.Summary)
			continue
		}

		start := e.Start.In(loc)
		date := model.DateOf(start)
		if e.AllDay {
			// Floating DATE values carry no zone; keep the written day.
			date = model.DateOf(e.Start)
		}
		ev := model.Event{
			ID:        importID(e),
			Title:     e.Summary,
			Date:      date,
			Kind:      eventKind(e),
			Priority:  model.PriorityMedium,
			SourceTag: model.SourceImported,
		}
		if e.HasCategory(string(model.SourceTask)) {
			ev.SourceTag = model.SourceTask
		}
		if ev.Title == "" {
			ev.Title = "(untitled)"
		}
		if !e.AllDay {
			c := model.ClockOf(start)
			ev.Time = &c
			if mins := int(e.End.Sub(e.Start).Minutes()); mins > 0 && mins <= 24*60 {
				ev.DurationMinutes = mins
			}
		}
		out = append(out, ev.WithDefaults())
	}
	return out
}

func importID(e Entry) string {
	id := "ics:" + e.UID
	if e.Recurrence != nil {
		id += "@" + e.Recurrence.UTC().Format("20060102T150405Z")
	}
	return id
}

func eventKind(e Entry) model.Kind {
	for _, c := range e.Categories {
		if k, err := model.ParseKind(c); err == nil {
			return k
		}
	}
	return model.KindStudy
}
