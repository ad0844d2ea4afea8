package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	appLog "studyplan/internal/log"
	"studyplan/internal/scheduler"
	"studyplan/internal/web"
)

const (
	jobRebalance = "rebalance"
	jobTimetable = "timetable-refresh"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API with background rebalancing and timetable refresh",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	appLog.Info("studyplan starting", "version", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	sched := scheduler.New(time.Local)
	if err := sched.Add(jobRebalance, cfg.Planner.RebalanceCron, func(ctx context.Context) error {
		_, err := a.orch.RunRebalance(ctx, a.orch.Today())
		return err
	}); err != nil {
		return err
	}
	if len(cfg.Feeds()) > 0 {
		if err := sched.Add(jobTimetable, cfg.Timetable.Refresh, a.feeds.Refresh); err != nil {
			return err
		}
		// Warm the timetable without delaying start-up.
		go func() { _ = sched.Run(ctx, jobTimetable) }()
	}
	sched.Start(ctx)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		sched.Stop(stopCtx)
	}()

	webOpts := []web.Option{web.WithJobs(sched.Next)}
	if db, ok := a.store.(web.Pinger); ok {
		webOpts = append(webOpts, web.WithDatabase(db))
	}
	if len(cfg.Feeds()) > 0 {
		webOpts = append(webOpts, web.WithTimetable(a.feeds.RefreshedAt))
	}

	if err := web.NewServer(cfg, a.orch, webOpts...).Run(ctx); err != nil {
		appLog.Error("HTTP server failed", err, "listen", cfg.Listen)
		return err
	}
	appLog.Info("studyplan exiting")
	return nil
}
