package timeline

import (
	"errors"
	"io"
	"testing"

	appLog "studyplan/internal/log"
	"studyplan/internal/model"
)

func init() {
	appLog.SetOutput(io.Discard)
}

func class(id, start, end string) model.Class {
	s, _ := model.ParseClock(start)
	e, _ := model.ParseClock(end)
	return model.Class{ID: id, CourseName: id, StartTime: s, EndTime: e, Type: model.ClassLecture}
}

func event(id, start string, minutes int) model.Event {
	ev := model.Event{ID: id, Title: id, Kind: model.KindStudy, DurationMinutes: minutes}
	if start != "" {
		c, _ := model.ParseClock(start)
		ev.Time = &c
	}
	return ev
}

// describe renders a timeline as compact labels: class id, event id, or gap range.
func describe(items []model.DayItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case model.ClassEntry:
			out = append(out, "C:"+v.Class.ID)
		case model.EventEntry:
			out = append(out, "E:"+v.Event.ID)
		case model.GapEntry:
			out = append(out, "G:"+v.From.String()+"-"+v.To.String())
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		classes []model.Class
		events  []model.Event
		minGap  int
		want    []string
	}{
		{
			name: "empty day",
			want: []string{},
		},
		{
			name:    "single class has no surrounding gaps",
			classes: []model.Class{class("math", "09:00", "10:30")},
			minGap:  10,
			want:    []string{"C:math"},
		},
		{
			name: "gap between two classes",
			classes: []model.Class{
				class("math", "09:00", "10:30"),
				class("physics", "12:00", "13:30"),
			},
			minGap: 10,
			want:   []string{"C:math", "G:10:30-12:00", "C:physics"},
		},
		{
			name: "gap below threshold dropped",
			classes: []model.Class{
				class("math", "09:00", "10:30"),
				class("physics", "10:35", "12:00"),
			},
			minGap: 10,
			want:   []string{"C:math", "C:physics"},
		},
		{
			name: "gap exactly at threshold kept",
			classes: []model.Class{
				class("math", "09:00", "10:30"),
				class("physics", "10:40", "12:00"),
			},
			minGap: 10,
			want:   []string{"C:math", "G:10:30-10:40", "C:physics"},
		},
		{
			name: "unsorted classes are ordered",
			classes: []model.Class{
				class("physics", "14:00", "15:00"),
				class("math", "08:00", "09:00"),
			},
			minGap: 10,
			want:   []string{"C:math", "G:09:00-14:00", "C:physics"},
		},
		{
			name: "event nested in class produces no phantom gap",
			classes: []model.Class{
				class("lab", "09:00", "12:00"),
				class("seminar", "12:30", "13:30"),
			},
			events: []model.Event{event("quiz", "09:30", 30)},
			minGap: 10,
			want:   []string{"C:lab", "E:quiz", "G:12:00-12:30", "C:seminar"},
		},
		{
			name: "overlapping events render back to back",
			events: []model.Event{
				event("a", "10:00", 60),
				event("b", "10:30", 60),
				event("c", "12:00", 30),
			},
			minGap: 10,
			want:   []string{"E:a", "E:b", "G:11:30-12:00", "E:c"},
		},
		{
			name: "tie on start sorts earlier end first",
			events: []model.Event{
				event("long", "10:00", 90),
				event("short", "10:00", 30),
			},
			minGap: 10,
			want:   []string{"E:short", "E:long"},
		},
		{
			name:    "untimed events appended in input order",
			classes: []model.Class{class("math", "09:00", "10:00")},
			events: []model.Event{
				event("later", "", 0),
				event("timed", "11:00", 30),
				event("first-untimed-added-second", "", 0),
			},
			minGap: 10,
			want:   []string{"C:math", "G:10:00-11:00", "E:timed", "E:later", "E:first-untimed-added-second"},
		},
		{
			name: "zero threshold keeps short gaps",
			classes: []model.Class{
				class("math", "09:00", "10:30"),
				class("physics", "10:35", "12:00"),
			},
			minGap: 0,
			want:   []string{"C:math", "G:10:30-10:35", "C:physics"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.classes, tt.events, Options{MinGapMinutes: tt.minGap})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if d := describe(got); !equal(d, tt.want) {
				t.Errorf("Build() = %v, want %v", d, tt.want)
			}
		})
	}
}

func TestBuildReconstructsDay(t *testing.T) {
	classes := []model.Class{
		class("a", "08:00", "09:30"),
		class("b", "09:30", "10:15"),
		class("c", "11:00", "12:00"),
		class("d", "12:05", "13:00"),
		class("e", "16:00", "17:45"),
	}
	items, err := Build(classes, nil, Options{MinGapMinutes: 0})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var cursor model.Clock
	for i, it := range items {
		start, end, ok := model.Span(it)
		if !ok {
			t.Fatalf("item %d has no span", i)
		}
		if i == 0 {
			if start != classes[0].StartTime {
				t.Fatalf("timeline starts at %v, want %v", start, classes[0].StartTime)
			}
		} else if start != cursor {
			t.Fatalf("item %d starts at %v, previous ended at %v", i, start, cursor)
		}
		if g, ok := it.(model.GapEntry); ok && g.Minutes != int(g.To-g.From) {
			t.Errorf("gap minutes = %d, want %d", g.Minutes, int(g.To-g.From))
		}
		cursor = end
	}
	if cursor != classes[len(classes)-1].EndTime {
		t.Errorf("timeline ends at %v, want %v", cursor, classes[len(classes)-1].EndTime)
	}
}

func TestBuildNoGapBelowThreshold(t *testing.T) {
	classes := []model.Class{
		class("a", "08:00", "08:50"),
		class("b", "08:55", "09:40"),
		class("c", "09:49", "10:30"),
		class("d", "11:30", "12:00"),
	}
	const threshold = 10
	items, err := Build(classes, nil, Options{MinGapMinutes: threshold})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, it := range items {
		if g, ok := it.(model.GapEntry); ok && g.Minutes < threshold {
			t.Errorf("gap %v-%v below threshold", g.From, g.To)
		}
	}
	if FreeMinutes(items) != 60 {
		t.Errorf("FreeMinutes() = %d, want 60", FreeMinutes(items))
	}
}

func TestBuildOverlappingClasses(t *testing.T) {
	classes := []model.Class{
		class("a", "09:00", "11:00"),
		class("b", "10:00", "12:00"),
		class("c", "13:00", "14:00"),
	}

	if _, err := Build(classes, nil, Options{MinGapMinutes: 10, Strict: true}); !errors.Is(err, ErrOverlappingClasses) {
		t.Fatalf("strict Build() error = %v, want ErrOverlappingClasses", err)
	}

	items, err := Build(classes, nil, Options{MinGapMinutes: 10})
	if err != nil {
		t.Fatalf("lenient Build() error = %v", err)
	}
	want := []string{"C:a", "C:b", "G:12:00-13:00", "C:c"}
	if d := describe(items); !equal(d, want) {
		t.Errorf("lenient Build() = %v, want %v", d, want)
	}
}
