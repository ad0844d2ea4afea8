package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "studyplan/internal/log"
)

// Entry is one VEVENT, normalized but not yet expanded.
type Entry struct {
	FeedID string

	UID         string
	Summary     string
	Description string
	Location    string
	Categories  []string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID when this entry overrides one instance
}

// IsOverride reports whether the entry replaces a single recurring instance.
func (e Entry) IsOverride() bool {
	return e.Recurrence != nil
}

// HasCategory matches case-insensitively.
func (e Entry) HasCategory(name string) bool {
	for _, c := range e.Categories {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Parse reads an ICS payload. Malformed VEVENTs are logged and skipped.
func Parse(feedID string, body []byte) ([]Entry, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0)
	for _, ve := range cal.Events() {
		e, err := parseEvent(feedID, ve)
		if err != nil {
			appLog.Warn("ics: vevent skipped", "feed", feedID, "reason", err.Error())
			continue
		}
		entries = append(entries, e)
	}

	appLog.Debug("ics: parsed", "feed", feedID, "entries", len(entries))
	return entries, nil
}

func parseEvent(feedID string, ve *ical.VEvent) (Entry, error) {
	e := Entry{FeedID: feedID}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return e, errors.New("missing UID")
	}
	e.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		e.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		e.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		e.Location = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				e.Categories = append(e.Categories, c)
			}
		}
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return e, err
	}
	e.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		e.End = end
	} else {
		e.End = start
	}

	if dt := ve.GetProperty(ical.ComponentPropertyDtStart); dt != nil {
		if vs := dt.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			e.AllDay = true
		}
		if !strings.Contains(dt.Value, "T") {
			e.AllDay = true
		}
	}
	if e.AllDay && !e.End.After(e.Start) {
		e.End = e.Start.AddDate(0, 0, 1)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		e.RawRRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseTimeValue(part, e.Start.Location()); err == nil {
				e.ExDates = append(e.ExDates, t)
			}
		}
	}
	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseTimeValue(p.Value, e.Start.Location()); err == nil {
			e.Recurrence = &t
		}
	}

	return e, nil
}

// parseTimeValue handles the three basic DATE / DATE-TIME forms. Floating
// values are read in loc, which is the owning event's zone.
func parseTimeValue(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
