package classes

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"studyplan/internal/ics"
	appLog "studyplan/internal/log"
	"studyplan/internal/model"
)

func init() {
	appLog.SetOutput(io.Discard)
}

func slot(id string, start, end model.Clock, rule string, from model.Date) Slot {
	return Slot{
		Class: model.Class{ID: id, CourseName: id, StartTime: start, EndTime: end, Type: model.ClassLecture},
		RRule: rule,
		From:  from,
	}
}

func classIDs(cs []model.Class) string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return strings.Join(ids, ",")
}

func TestWeekly(t *testing.T) {
	term := model.NewDate(2025, 6, 2)
	w, err := NewWeekly([]Slot{
		slot("physics", model.NewClock(13, 0), model.NewClock(14, 30), "FREQ=WEEKLY;BYDAY=MO", term),
		slot("algo", model.NewClock(8, 0), model.NewClock(9, 30), "FREQ=WEEKLY;BYDAY=MO,WE", term),
		slot("seminar", model.NewClock(10, 0), model.NewClock(12, 0), "FREQ=WEEKLY;INTERVAL=2;BYDAY=FR;UNTIL=20250630T000000Z", term),
	})
	if err != nil {
		t.Fatalf("NewWeekly() error = %v", err)
	}

	tests := []struct {
		date model.Date
		want string
	}{
		{model.NewDate(2025, 6, 16), "algo,physics"},
		{model.NewDate(2025, 6, 18), "algo"},
		{model.NewDate(2025, 6, 17), ""},
		{model.NewDate(2025, 6, 6), "seminar"},
		{model.NewDate(2025, 6, 13), ""},
		{model.NewDate(2025, 6, 20), "seminar"},
		{model.NewDate(2025, 7, 4), ""},
		{model.NewDate(2025, 5, 26), ""},
	}
	for _, tt := range tests {
		t.Run(tt.date.String(), func(t *testing.T) {
			got, err := w.ClassesForDate(context.Background(), tt.date)
			if err != nil {
				t.Fatal(err)
			}
			if ids := classIDs(got); ids != tt.want {
				t.Errorf("ClassesForDate(%v) = %q, want %q", tt.date, ids, tt.want)
			}
		})
	}
}

func TestNewWeeklyRejectsBadSlots(t *testing.T) {
	from := model.NewDate(2025, 6, 2)
	tests := []struct {
		name string
		slot Slot
	}{
		{"bad rule", slot("x", 60, 120, "FREQ=SOMETIMES", from)},
		{"no id", slot("", 60, 120, "FREQ=WEEKLY", from)},
		{"inverted", slot("x", 120, 60, "FREQ=WEEKLY", from)},
		{"no start date", slot("x", 60, 120, "FREQ=WEEKLY", model.Date{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWeekly([]Slot{tt.slot}); err == nil {
				t.Error("NewWeekly() expected error")
			}
		})
	}
}

func TestMerge(t *testing.T) {
	a := SourceFunc(func(context.Context, model.Date) ([]model.Class, error) {
		return []model.Class{{ID: "late", StartTime: 600, EndTime: 660}}, nil
	})
	b := SourceFunc(func(context.Context, model.Date) ([]model.Class, error) {
		return []model.Class{{ID: "early", StartTime: 480, EndTime: 540}}, nil
	})
	broken := SourceFunc(func(context.Context, model.Date) ([]model.Class, error) {
		return nil, errors.New("feed down")
	})

	got, err := Merge(a, broken, b).ClassesForDate(context.Background(), model.NewDate(2025, 6, 16))
	if err == nil {
		t.Error("Merge() should report the failing source")
	}
	if ids := classIDs(got); ids != "early,late" {
		t.Errorf("Merge() = %q, want early,late", ids)
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	body  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, ics.Feed) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	return []byte(f.body), false, nil
}

const feedBody = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:db-ex\r\nDTSTAMP:20250601T000000Z\r\n" +
	"DTSTART:20250617T140000Z\r\nDTEND:20250617T153000Z\r\n" +
	"RRULE:FREQ=WEEKLY\r\nSUMMARY:Databases Exercise\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestFeeds(t *testing.T) {
	fetcher := &fakeFetcher{body: feedBody}
	src := NewFeeds(fetcher, []ics.Feed{{ID: "uni", URL: "https://uni.example/cal.ics"}}, time.UTC)
	ctx := context.Background()

	got, err := src.ClassesForDate(ctx, model.NewDate(2025, 6, 24))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "db-ex" || got[0].Type != model.ClassExercise || got[0].StartTime != model.NewClock(14, 0) {
		t.Fatalf("ClassesForDate() = %+v", got)
	}

	// Cached entries serve further lookups without another fetch.
	if _, err := src.ClassesForDate(ctx, model.NewDate(2025, 6, 25)); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.calls)
	}
	loadedAt := src.RefreshedAt()
	if loadedAt.IsZero() {
		t.Fatal("RefreshedAt() is zero after the first load")
	}

	// A failed refresh keeps the previous timetable.
	fetcher.err = errors.New("offline")
	if err := src.Refresh(ctx); err == nil {
		t.Error("Refresh() should return the fetch error")
	}
	if got := src.RefreshedAt(); !got.Equal(loadedAt) {
		t.Errorf("RefreshedAt() moved to %v after a failed refresh", got)
	}
	got, _ = src.ClassesForDate(ctx, model.NewDate(2025, 7, 1))
	if len(got) != 1 {
		t.Errorf("after failed refresh got %d classes, want 1", len(got))
	}
}
