// Package classes provides read-only sources of fixed class entries.
package classes

import (
	"context"
	"errors"
	"slices"

	"studyplan/internal/model"
)

// Source returns the classes held on a date, sorted by start time.
type Source interface {
	ClassesForDate(ctx context.Context, date model.Date) ([]model.Class, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, date model.Date) ([]model.Class, error)

func (f SourceFunc) ClassesForDate(ctx context.Context, date model.Date) ([]model.Class, error) {
	return f(ctx, date)
}

// Empty is a Source with no classes.
var Empty Source = SourceFunc(func(context.Context, model.Date) ([]model.Class, error) {
	return []model.Class{}, nil
})

// Merge combines several sources. A failing source does not hide the others;
// its error is joined into the returned error alongside the merged classes.
func Merge(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context, date model.Date) ([]model.Class, error) {
		out := make([]model.Class, 0)
		var errs []error
		for _, s := range sources {
			cs, err := s.ClassesForDate(ctx, date)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, cs...)
		}
		SortByStart(out)
		return out, errors.Join(errs...)
	})
}

// SortByStart orders classes by start, then end, then id.
func SortByStart(cs []model.Class) {
	slices.SortFunc(cs, func(a, b model.Class) int {
		if a.StartTime != b.StartTime {
			return int(a.StartTime - b.StartTime)
		}
		if a.EndTime != b.EndTime {
			return int(a.EndTime - b.EndTime)
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
