package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"studyplan/internal/ics"
	appLog "studyplan/internal/log"
	"studyplan/internal/model"
	"studyplan/internal/orchestrator"
	"studyplan/internal/timeline"
)

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Run one rebalancing pass and print the moves",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, today, err := appForDate(cmd, "today")
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.orch.RunRebalance(cmd.Context(), today)
		if err != nil {
			return err
		}
		printRebalance(cmd.OutOrStdout(), today, res)
		return nil
	},
}

var dayCmd = &cobra.Command{
	Use:   "day",
	Short: "Print the timeline of one day with gaps between classes and tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, date, err := appForDate(cmd, "date")
		if err != nil {
			return err
		}
		defer a.close()

		a.orch.SelectDate(date)
		items, err := a.orch.DayTimeline(cmd.Context())
		if err != nil {
			return err
		}
		printDay(cmd.OutOrStdout(), date, items)
		return nil
	},
}

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Print the events of a Monday..Sunday week",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, date, err := appForDate(cmd, "date")
		if err != nil {
			return err
		}
		defer a.close()

		a.orch.SelectDate(date)
		evs, err := a.orch.EventsForSelectedWeek(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Week %s .. %s\n", date.WeekStart(), date.WeekEnd())
		printEvents(cmd.OutOrStdout(), evs)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.ics>",
	Short: "Import single VEVENTs from an ICS file as schedule events",
	Long: `Import reads an ICS file and stores every non-recurring VEVENT as a
schedule event. Events whose CATEGORIES include "task" become movable tasks;
everything else is imported as fixed. Re-importing replaces events by UID.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := importFile(cmd.Context(), a, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d events from %s\n", n, args[0])
		return nil
	},
}

func init() {
	rebalanceCmd.Flags().String("today", "", "Date to rebalance for, YYYY-MM-DD (default: today)")
	dayCmd.Flags().String("date", "", "Date to show, YYYY-MM-DD (default: today)")
	weekCmd.Flags().String("date", "", "Any date inside the week, YYYY-MM-DD (default: today)")
}

// appForDate loads config, wires the app and resolves a date flag. A given
// date also pins the orchestrator clock so "today" matches it.
func appForDate(cmd *cobra.Command, flag string) (*app, model.Date, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, model.Date{}, err
	}

	date := model.Today(time.Now())
	var extra []orchestrator.Option
	if raw, _ := cmd.Flags().GetString(flag); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return nil, model.Date{}, fmt.Errorf("--%s: %w", flag, err)
		}
		date = d
		if flag == "today" {
			pinned := d.In(time.Local).Add(12 * time.Hour)
			extra = append(extra, orchestrator.WithClock(func() time.Time { return pinned }))
		}
	}

	a, err := newApp(cfg, extra...)
	if err != nil {
		return nil, model.Date{}, err
	}
	return a, date, nil
}

func importFile(ctx context.Context, a *app, path string) (int, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	entries, err := ics.Parse("import", body)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	evs := make([]model.Event, 0, len(entries))
	for _, ev := range ics.ToEvents(entries, time.Local) {
		ev = ev.WithDefaults()
		if err := ev.Validate(); err != nil {
			appLog.Warn("import: skipping invalid event", "event_id", ev.ID, "reason", err.Error())
			continue
		}
		evs = append(evs, ev)
	}
	if err := a.store.ImportEvents(ctx, evs); err != nil {
		return 0, err
	}
	appLog.Info("import done", "path", path, "entries", len(entries), "imported", len(evs))
	return len(evs), nil
}

func printRebalance(w io.Writer, today model.Date, res orchestrator.RebalanceResult) {
	if res.Skipped {
		fmt.Fprintln(w, "rebalance skipped: another pass is running")
		return
	}
	fmt.Fprintf(w, "Rebalanced for %s\n", today)
	if len(res.Moved) == 0 && res.Pulled == nil {
		fmt.Fprintln(w, "  nothing to move")
		return
	}
	for _, ev := range res.Moved {
		fmt.Fprintf(w, "  rolled over  %-30s -> %s\n", ev.Title, ev.Date)
	}
	if res.Pulled != nil {
		fmt.Fprintf(w, "  pulled ahead %-30s -> %s\n", res.Pulled.Title, res.Pulled.Date)
	}
}

func printDay(w io.Writer, date model.Date, items []model.DayItem) {
	fmt.Fprintf(w, "%s (%s)\n", date, date.Weekday())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		start, end, timed := model.Span(it)
		when := "--:--"
		if timed {
			when = start.String() + "-" + end.String()
		}
		switch v := it.(type) {
		case model.ClassEntry:
			att := ""
			if v.Attendance != nil {
				att = "attended: " + string(v.Attendance.Attendance)
			}
			fmt.Fprintf(tw, "%s\tclass\t%s\t%s\t%s\n", when, v.Class.CourseName, v.Class.Location, att)
		case model.GapEntry:
			fmt.Fprintf(tw, "%s\tfree\t%d min\t\t\n", when, v.Minutes)
		case model.EventEntry:
			done := ""
			if v.Event.IsCompleted {
				done = "done"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", when, v.Event.Kind, v.Event.Title, v.Event.Priority, done)
		}
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "free between entries: %d min\n", timeline.FreeMinutes(items))
}

func printEvents(w io.Writer, evs []model.Event) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ev := range evs {
		when := "--:--"
		if ev.Time != nil {
			when = ev.Time.String()
		}
		done := ""
		if ev.IsCompleted {
			done = "done"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", ev.Date, when, ev.Kind, ev.Title, ev.Priority, done)
	}
	_ = tw.Flush()
}
