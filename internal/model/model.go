package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultDurationMinutes is used for events that carry no explicit duration.
const DefaultDurationMinutes = 60

// ErrInvalidEvent is returned by Validate for malformed events.
var ErrInvalidEvent = errors.New("invalid event")

// Kind classifies a ScheduleEvent.
type Kind string

const (
	KindStudy               Kind = "study"
	KindProject             Kind = "project"
	KindExamMidterm         Kind = "exam-midterm"
	KindExamFinal           Kind = "exam-final"
	KindSubmissionProject   Kind = "submission-project"
	KindSubmissionMilestone Kind = "submission-milestone"
	KindSubmissionWeekly    Kind = "submission-weekly"
	KindActivitySport       Kind = "activity-sport"
	KindActivityAssociation Kind = "activity-association"
	KindClassLecture        Kind = "class-lecture"
	KindClassExercise       Kind = "class-exercise"
	KindClassLab            Kind = "class-lab"
)

// Kinds lists every known kind in display order.
var Kinds = []Kind{
	KindStudy, KindProject,
	KindExamMidterm, KindExamFinal,
	KindSubmissionProject, KindSubmissionMilestone, KindSubmissionWeekly,
	KindActivitySport, KindActivityAssociation,
	KindClassLecture, KindClassExercise, KindClassLab,
}

// Preferred reports whether the kind is academic work that should be pulled
// forward before anything else: study, project, submissions and exams.
func (k Kind) Preferred() bool {
	switch {
	case k == KindStudy, k == KindProject:
		return true
	case strings.HasPrefix(string(k), "submission-"), strings.HasPrefix(string(k), "exam-"):
		return true
	}
	return false
}

// ParseKind accepts any of the values in Kinds.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities: high=2, medium=1, low=0. Unknown values rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// SourceTag tells user-created tasks apart from imported or system events.
// Only task events are ever moved automatically.
type SourceTag string

const (
	SourceTask     SourceTag = "task"
	SourceImported SourceTag = "imported"
	SourceSystem   SourceTag = "system"
)

// Event is a flexible, user-movable schedule entry.
type Event struct {
	ID              string    `json:"id" validate:"required"`
	Title           string    `json:"title" validate:"required"`
	Date            Date      `json:"date"`
	Time            *Clock    `json:"time,omitempty" validate:"omitempty,lt=1440"`
	DurationMinutes int       `json:"duration_minutes,omitempty" validate:"gte=0,lte=1440"`
	Kind            Kind      `json:"kind" validate:"required,oneof=study project exam-midterm exam-final submission-project submission-milestone submission-weekly activity-sport activity-association class-lecture class-exercise class-lab"`
	Priority        Priority  `json:"priority" validate:"omitempty,oneof=low medium high"`
	SourceTag       SourceTag `json:"source_tag" validate:"omitempty,oneof=task imported system"`
	IsCompleted     bool      `json:"is_completed"`
}

// IsTask reports whether the event is a user task eligible for rebalancing.
func (e Event) IsTask() bool {
	return e.SourceTag == SourceTask
}

// Duration returns the effective duration in minutes.
func (e Event) Duration() int {
	if e.DurationMinutes <= 0 {
		return DefaultDurationMinutes
	}
	return e.DurationMinutes
}

// End returns start + duration. ok is false for untimed events.
func (e Event) End() (Clock, bool) {
	if e.Time == nil {
		return 0, false
	}
	return e.Time.Add(e.Duration()), true
}

// WithDefaults fills optional fields the way newly created events expect them.
func (e Event) WithDefaults() Event {
	if e.Priority == "" {
		e.Priority = PriorityMedium
	}
	if e.SourceTag == "" {
		e.SourceTag = SourceTask
	}
	if e.DurationMinutes <= 0 {
		e.DurationMinutes = DefaultDurationMinutes
	}
	return e
}

// Validate checks field constraints and that the date is set.
func (e Event) Validate() error {
	if e.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidEvent)
	}
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

type ClassType string

const (
	ClassLecture  ClassType = "lecture"
	ClassExercise ClassType = "exercise"
	ClassLab      ClassType = "lab"
	ClassProject  ClassType = "project"
)

// Class is a fixed calendar entry read from a class source. The engine never
// writes classes.
type Class struct {
	ID         string    `json:"id"`
	CourseName string    `json:"course_name"`
	StartTime  Clock     `json:"start_time"`
	EndTime    Clock     `json:"end_time"`
	Type       ClassType `json:"type"`
	Location   string    `json:"location,omitempty"`
	Instructor string    `json:"instructor,omitempty"`
}

type AttendanceStatus string

const (
	AttendedYes  AttendanceStatus = "yes"
	AttendedLate AttendanceStatus = "arrived-late"
	AttendedNo   AttendanceStatus = "no"
)

// UnmarshalText accepts the short "late" spelling as AttendedLate.
func (s *AttendanceStatus) UnmarshalText(b []byte) error {
	*s = NormalizeAttendance(string(b))
	return nil
}

// NormalizeAttendance maps stored or user-supplied spellings onto the
// canonical statuses. Unknown values pass through for Validate to reject.
func NormalizeAttendance(raw string) AttendanceStatus {
	switch v := AttendanceStatus(strings.ToLower(strings.TrimSpace(raw))); v {
	case "late", "arrived_late":
		return AttendedLate
	default:
		return v
	}
}

type CompletionStatus string

const (
	CompletedYes       CompletionStatus = "yes"
	CompletedPartially CompletionStatus = "partially"
	CompletedNo        CompletionStatus = "no"
)

// ClassAttendance records attendance for one class on one day.
// (ClassID, Date) is the identity; a later save replaces the earlier record.
type ClassAttendance struct {
	ClassID    string           `json:"class_id" validate:"required"`
	Date       Date             `json:"date"`
	Attendance AttendanceStatus `json:"attendance" validate:"required,oneof=yes arrived-late no"`
	Completion CompletionStatus `json:"completion" validate:"required,oneof=yes partially no"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Key returns the identity of the record.
func (a ClassAttendance) Key() string {
	return a.ClassID + "@" + a.Date.String()
}

func (a ClassAttendance) Validate() error {
	if a.Date.IsZero() {
		return errors.New("attendance: date is required")
	}
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("attendance: %w", err)
	}
	return nil
}

var validate = validator.New()
