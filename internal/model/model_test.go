package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateWeekBounds(t *testing.T) {
	tests := []struct {
		name      string
		date      Date
		wantStart Date
		wantEnd   Date
	}{
		{"wednesday", NewDate(2025, 6, 18), NewDate(2025, 6, 16), NewDate(2025, 6, 22)},
		{"monday", NewDate(2025, 6, 16), NewDate(2025, 6, 16), NewDate(2025, 6, 22)},
		{"sunday", NewDate(2025, 6, 22), NewDate(2025, 6, 16), NewDate(2025, 6, 22)},
		{"across month", NewDate(2025, 7, 2), NewDate(2025, 6, 30), NewDate(2025, 7, 6)},
		{"across year", NewDate(2026, 1, 1), NewDate(2025, 12, 29), NewDate(2026, 1, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.date.WeekStart(); got != tt.wantStart {
				t.Errorf("WeekStart() = %v, want %v", got, tt.wantStart)
			}
			if got := tt.date.WeekEnd(); got != tt.wantEnd {
				t.Errorf("WeekEnd() = %v, want %v", got, tt.wantEnd)
			}
		})
	}
}

func TestDateParseAndFormat(t *testing.T) {
	d, err := ParseDate("2025-06-18")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if d != NewDate(2025, time.June, 18) {
		t.Errorf("ParseDate() = %+v", d)
	}
	if d.String() != "2025-06-18" {
		t.Errorf("String() = %q", d.String())
	}
	if _, err := ParseDate("18.06.2025"); err == nil {
		t.Error("ParseDate() expected error for bad layout")
	}
	if got := NewDate(2025, 2, 10).MonthEnd(); got != NewDate(2025, 2, 28) {
		t.Errorf("MonthEnd() = %v", got)
	}
	if got := NewDate(2024, 2, 10).MonthEnd(); got != NewDate(2024, 2, 29) {
		t.Errorf("MonthEnd() leap year = %v", got)
	}
	if got := NewDate(2025, 12, 31).AddDays(1); got != NewDate(2026, 1, 1) {
		t.Errorf("AddDays() across year = %v", got)
	}
	if !NewDate(2025, 6, 18).Within(NewDate(2025, 6, 16), NewDate(2025, 6, 22)) {
		t.Error("Within() should include a mid-week date")
	}
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}
	b, err := json.Marshal(wrapper{D: NewDate(2025, 6, 18)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"d":"2025-06-18"}` {
		t.Errorf("Marshal() = %s", b)
	}

	var zero wrapper
	if b, _ := json.Marshal(zero); string(b) != `{"d":""}` {
		t.Errorf("zero date Marshal() = %s", b)
	}
	var back wrapper
	if err := json.Unmarshal([]byte(`{"d":""}`), &back); err != nil || !back.D.IsZero() {
		t.Errorf("Unmarshal(empty) = %+v, %v", back, err)
	}
	if err := json.Unmarshal([]byte(`{"d":"2025-13-01"}`), &back); err == nil {
		t.Error("Unmarshal() expected error for month 13")
	}
}

func TestClassJSONPastMidnight(t *testing.T) {
	in := Class{ID: "night-lab", CourseName: "Lab", StartTime: NewClock(22, 0), EndTime: MinutesPerDay + 90}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Class
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", b, err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestAttendanceSpelling(t *testing.T) {
	tests := []struct {
		raw  string
		want AttendanceStatus
	}{
		{`"arrived-late"`, AttendedLate},
		{`"late"`, AttendedLate},
		{`"yes"`, AttendedYes},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var got AttendanceStatus
			if err := json.Unmarshal([]byte(tt.raw), &got); err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}

	rec := ClassAttendance{ClassID: "algo", Date: NewDate(2025, 6, 18), Attendance: AttendedLate, Completion: CompletedYes}
	if err := rec.Validate(); err != nil {
		t.Errorf("Validate(arrived-late) error = %v", err)
	}
	rec.Attendance = "maybe"
	if err := rec.Validate(); err == nil {
		t.Error("Validate() expected error for unknown status")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:30", NewClock(9, 30), false},
		{"00:00", 0, false},
		{"23:59", NewClock(23, 59), false},
		{"24:00", 0, true},
		{"9", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestKindPreferred(t *testing.T) {
	preferred := map[Kind]bool{
		KindStudy: true, KindProject: true,
		KindExamMidterm: true, KindExamFinal: true,
		KindSubmissionProject: true, KindSubmissionMilestone: true, KindSubmissionWeekly: true,
	}
	for _, k := range Kinds {
		if got := k.Preferred(); got != preferred[k] {
			t.Errorf("%s.Preferred() = %v, want %v", k, got, preferred[k])
		}
	}
}

func TestEventValidate(t *testing.T) {
	valid := Event{ID: "e1", Title: "Read ch. 3", Date: NewDate(2025, 6, 18), Kind: KindStudy}.WithDefaults()
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{"missing id", func(e *Event) { e.ID = "" }},
		{"missing title", func(e *Event) { e.Title = "" }},
		{"missing date", func(e *Event) { e.Date = Date{} }},
		{"bad kind", func(e *Event) { e.Kind = "nap" }},
		{"bad priority", func(e *Event) { e.Priority = "urgent" }},
		{"too long", func(e *Event) { e.DurationMinutes = 2000 }},
		{"time past midnight", func(e *Event) { c := MinutesPerDay; e.Time = &c }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := valid
			tt.mutate(&ev)
			if err := ev.Validate(); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Validate() = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestEventEnd(t *testing.T) {
	start := NewClock(10, 0)
	ev := Event{Time: &start}
	end, ok := ev.End()
	if !ok || end != NewClock(11, 0) {
		t.Errorf("End() = %v, %v; want 11:00 with default duration", end, ok)
	}
	if _, ok := (Event{}).End(); ok {
		t.Error("End() on untimed event should report ok=false")
	}
}
