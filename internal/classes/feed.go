package classes

import (
	"context"
	"errors"
	"sync"
	"time"

	"studyplan/internal/ics"
	appLog "studyplan/internal/log"
	"studyplan/internal/model"
)

// Fetcher is the subset of ics.Fetcher used by Feeds.
type Fetcher interface {
	Fetch(ctx context.Context, feed ics.Feed) ([]byte, bool, error)
}

// Feeds is a Source backed by ICS timetable subscriptions. Parsed entries are
// kept in memory and replaced on Refresh; the first lookup refreshes lazily.
type Feeds struct {
	fetcher Fetcher
	feeds   []ics.Feed
	loc     *time.Location

	mu        sync.RWMutex
	entries   []ics.Entry
	loaded    bool
	refreshed time.Time
}

// NewFeeds builds a feed-backed source. loc is the zone classes are shown in;
// nil means time.Local.
func NewFeeds(fetcher Fetcher, feeds []ics.Feed, loc *time.Location) *Feeds {
	if loc == nil {
		loc = time.Local
	}
	return &Feeds{fetcher: fetcher, feeds: feeds, loc: loc}
}

// Refresh fetches and parses every feed. Feeds that fail keep their previous
// entries out of the result; the errors are joined and returned.
func (f *Feeds) Refresh(ctx context.Context) error {
	entries := make([]ics.Entry, 0)
	var errs []error
	for _, feed := range f.feeds {
		body, _, err := f.fetcher.Fetch(ctx, feed)
		if err != nil {
			appLog.Error("classes: feed fetch failed", err, "feed", feed.ID)
			errs = append(errs, err)
			continue
		}
		parsed, err := ics.Parse(feed.ID, body)
		if err != nil {
			appLog.Error("classes: feed parse failed", err, "feed", feed.ID)
			errs = append(errs, err)
			continue
		}
		entries = append(entries, parsed...)
	}

	f.mu.Lock()
	// Keep the old timetable when every feed failed.
	if len(errs) < len(f.feeds) || len(f.feeds) == 0 {
		f.entries = entries
		f.refreshed = time.Now()
	}
	f.loaded = true
	f.mu.Unlock()

	appLog.Info("classes: feeds refreshed", "feeds", len(f.feeds), "entries", len(entries), "failed", len(errs))
	return errors.Join(errs...)
}

// RefreshedAt returns when the timetable was last replaced; zero until a
// refresh succeeds for at least one feed.
func (f *Feeds) RefreshedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.refreshed
}

func (f *Feeds) ClassesForDate(ctx context.Context, date model.Date) ([]model.Class, error) {
	f.mu.RLock()
	loaded := f.loaded
	f.mu.RUnlock()
	if !loaded {
		if err := f.Refresh(ctx); err != nil {
			appLog.Warn("classes: lazy refresh incomplete", "reason", err.Error())
		}
	}

	f.mu.RLock()
	entries := f.entries
	f.mu.RUnlock()

	out := make([]model.Class, 0)
	for _, occ := range ics.OccurrencesOn(entries, date, f.loc) {
		if occ.AllDay {
			continue
		}
		out = append(out, ics.ToClass(occ))
	}
	SortByStart(out)
	return out, nil
}
