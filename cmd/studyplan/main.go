package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"studyplan/internal/config"
	appLog "studyplan/internal/log"
)

const version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "studyplan",
	Short: "Adaptive study schedule planner",
	Long: `studyplan keeps a week of study tasks balanced around a fixed class
timetable: missed tasks roll into next week, and finishing early pulls
work forward onto the lightest remaining day.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initEnv)

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "studyplan.yaml", "Path to config file")
	pf.String("listen", "", "HTTP listen address (overrides config if set)")
	pf.String("database", "", "SQLite database path, or :memory: (overrides config if set)")
	pf.String("log-level", "", "debug, info, warn or error (overrides config if set)")
	for _, name := range []string{"config", "listen", "database", "log-level"} {
		_ = viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), pf.Lookup(name))
	}

	rootCmd.AddCommand(serveCmd, rebalanceCmd, dayCmd, weekCmd, importCmd)
}

// initEnv loads .env first so STUDYPLAN_* variables in it are visible to viper.
func initEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("failed to load .env", "reason", err.Error())
	}
	viper.SetEnvPrefix("STUDYPLAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the YAML file and applies flag/env overrides.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", path)
		if cfg == nil {
			return nil, err
		}
	}

	if v := viper.GetString("listen"); v != "" {
		cfg.Listen = v
	}
	if v := viper.GetString("database"); v != "" {
		cfg.Database = v
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.LogLevel = v
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	appLog.Debug("effective config",
		"config_path", path,
		"listen", cfg.Listen,
		"database", cfg.Database,
		"rollover", cfg.Planner.Rollover,
		"min_gap_minutes", cfg.Planner.MinGapMinutes,
		"feeds", len(cfg.Timetable.Feeds),
		"classes", len(cfg.Timetable.Classes),
	)
	return cfg, nil
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
