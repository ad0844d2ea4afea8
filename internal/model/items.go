package model

// DayItem is one entry of a day timeline. It is a closed union of
// ClassEntry, GapEntry and EventEntry; consumers type-switch over the three.
type DayItem interface {
	dayItem()
}

// ClassEntry is a fixed class, optionally annotated with the day's attendance.
type ClassEntry struct {
	Class      Class
	Attendance *ClassAttendance
}

// GapEntry is idle time between two known entries.
type GapEntry struct {
	From    Clock
	To      Clock
	Minutes int
}

// EventEntry is a flexible schedule event.
type EventEntry struct {
	Event Event
}

func (ClassEntry) dayItem() {}
func (GapEntry) dayItem()   {}
func (EventEntry) dayItem() {}

// Span returns the start and end of an item. ok is false for untimed events.
func Span(item DayItem) (start, end Clock, ok bool) {
	switch it := item.(type) {
	case ClassEntry:
		return it.Class.StartTime, it.Class.EndTime, true
	case GapEntry:
		return it.From, it.To, true
	case EventEntry:
		if it.Event.Time == nil {
			return 0, 0, false
		}
		end, _ := it.Event.End()
		return *it.Event.Time, end, true
	}
	return 0, 0, false
}

// ItemKind returns a short label used by the JSON API.
func ItemKind(item DayItem) string {
	switch item.(type) {
	case ClassEntry:
		return "class"
	case GapEntry:
		return "gap"
	case EventEntry:
		return "event"
	}
	return "unknown"
}
