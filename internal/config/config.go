package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"studyplan/internal/classes"
	"studyplan/internal/ics"
	"studyplan/internal/model"
	"studyplan/internal/planner"
)

// FeedConfig describes a timetable ICS subscription.
type FeedConfig struct {
	// ID is an internal identifier used for the cache directory and logging.
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// ClassConfig is a recurring class slot written by hand.
type ClassConfig struct {
	ID         string `yaml:"id" json:"id"`
	Course     string `yaml:"course" json:"course"`
	Type       string `yaml:"type" json:"type"`
	Start      string `yaml:"start" json:"start"` // HH:MM
	End        string `yaml:"end" json:"end"`     // HH:MM
	Location   string `yaml:"location,omitempty" json:"location,omitempty"`
	Instructor string `yaml:"instructor,omitempty" json:"instructor,omitempty"`
	// RRule without DTSTART, e.g. "FREQ=WEEKLY;BYDAY=MO,WE".
	RRule string `yaml:"rrule" json:"rrule"`
	// From is the first date (YYYY-MM-DD) the slot may occur on.
	From string `yaml:"from" json:"from"`
}

type TimetableConfig struct {
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// Refresh is the cron schedule for re-fetching feeds.
	Refresh string        `yaml:"refresh" json:"refresh"`
	Feeds   []FeedConfig  `yaml:"feeds" json:"feeds"`
	Classes []ClassConfig `yaml:"classes" json:"classes"`
}

type PlannerConfig struct {
	MinGapMinutes          int    `yaml:"min_gap_minutes" json:"min_gap_minutes"`
	DefaultDurationMinutes int    `yaml:"default_duration_minutes" json:"default_duration_minutes"`
	Rollover               string `yaml:"rollover" json:"rollover"`
	StrictTimeline         bool   `yaml:"strict_timeline" json:"strict_timeline"`
	// RebalanceTimeoutSeconds bounds one pass; 0 disables the bound.
	RebalanceTimeoutSeconds int `yaml:"rebalance_timeout_seconds" json:"rebalance_timeout_seconds"`
	// RebalanceCron runs a pass in the background; empty disables it.
	RebalanceCron string `yaml:"rebalance_cron" json:"rebalance_cron"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen string `yaml:"listen" json:"listen"`

	// Database is the SQLite file. Empty or ":memory:" keeps events in memory.
	Database string `yaml:"database" json:"database"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Planner   PlannerConfig   `yaml:"planner" json:"planner"`
	Timetable TimetableConfig `yaml:"timetable" json:"timetable"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen        = "127.0.0.1:8080"
	defaultRebalanceCron = "5 0 * * *"
	defaultRefreshCron   = "0 */6 * * *"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Database: "studyplan.db",
		LogLevel: "info",
		Planner: PlannerConfig{
			MinGapMinutes:           10,
			DefaultDurationMinutes:  model.DefaultDurationMinutes,
			Rollover:                string(planner.RolloverNextWeekStart),
			RebalanceTimeoutSeconds: 30,
			RebalanceCron:           defaultRebalanceCron,
		},
		Timetable: TimetableConfig{
			CacheDir: "cache/timetable",
			Refresh:  defaultRefreshCron,
			Feeds:    []FeedConfig{},
			Classes:  []ClassConfig{},
		},
	}
}

// Normalize fills in missing values so partially written files still work.
// Zero MinGapMinutes and RebalanceTimeoutSeconds are meaningful and kept.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Planner.MinGapMinutes < 0 {
		c.Planner.MinGapMinutes = 10
	}
	if c.Planner.DefaultDurationMinutes <= 0 {
		c.Planner.DefaultDurationMinutes = model.DefaultDurationMinutes
	}
	if c.Planner.Rollover == "" {
		c.Planner.Rollover = string(planner.RolloverNextWeekStart)
	}
	if c.Planner.RebalanceTimeoutSeconds < 0 {
		c.Planner.RebalanceTimeoutSeconds = 0
	}
	if c.Timetable.Refresh == "" {
		c.Timetable.Refresh = defaultRefreshCron
	}
	if c.Timetable.Feeds == nil {
		c.Timetable.Feeds = []FeedConfig{}
	}
	if c.Timetable.Classes == nil {
		c.Timetable.Classes = []ClassConfig{}
	}
	for i := range c.Timetable.Feeds {
		f := &c.Timetable.Feeds[i]
		if f.ID == "" {
			if f.Name != "" {
				f.ID = f.Name
			} else {
				f.ID = fmt.Sprintf("feed%d", i+1)
			}
		}
	}
}

// Validate checks values that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := planner.ParseRolloverPolicy(c.Planner.Rollover); err != nil {
		errs = append(errs, err)
	}
	for name, spec := range map[string]string{
		"planner.rebalance_cron": c.Planner.RebalanceCron,
		"timetable.refresh":      c.Timetable.Refresh,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if _, err := c.Slots(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RebalanceTimeout returns the pass bound as a duration.
func (c *Config) RebalanceTimeout() time.Duration {
	return time.Duration(c.Planner.RebalanceTimeoutSeconds) * time.Second
}

// Rollover returns the parsed rollover policy, defaulting on bad input.
func (c *Config) Rollover() planner.RolloverPolicy {
	p, err := planner.ParseRolloverPolicy(c.Planner.Rollover)
	if err != nil {
		return planner.RolloverNextWeekStart
	}
	return p
}

// Slots converts the configured classes into weekly slots.
func (c *Config) Slots() ([]classes.Slot, error) {
	out := make([]classes.Slot, 0, len(c.Timetable.Classes))
	for i, cc := range c.Timetable.Classes {
		start, err := model.ParseClock(cc.Start)
		if err != nil {
			return nil, fmt.Errorf("timetable.classes[%d].start: %w", i, err)
		}
		end, err := model.ParseClock(cc.End)
		if err != nil {
			return nil, fmt.Errorf("timetable.classes[%d].end: %w", i, err)
		}
		from, err := model.ParseDate(cc.From)
		if err != nil {
			return nil, fmt.Errorf("timetable.classes[%d].from: %w", i, err)
		}
		typ := model.ClassType(cc.Type)
		switch typ {
		case model.ClassLecture, model.ClassExercise, model.ClassLab, model.ClassProject:
		case "":
			typ = model.ClassLecture
		default:
			return nil, fmt.Errorf("timetable.classes[%d].type: unknown %q", i, cc.Type)
		}
		id := cc.ID
		if id == "" {
			id = fmt.Sprintf("class%d", i+1)
		}
		out = append(out, classes.Slot{
			Class: model.Class{
				ID:         id,
				CourseName: cc.Course,
				StartTime:  start,
				EndTime:    end,
				Type:       typ,
				Location:   cc.Location,
				Instructor: cc.Instructor,
			},
			RRule: cc.RRule,
			From:  from,
		})
	}
	return out, nil
}

// Feeds converts the configured subscriptions, skipping entries without a URL.
func (c *Config) Feeds() []ics.Feed {
	out := make([]ics.Feed, 0, len(c.Timetable.Feeds))
	for _, f := range c.Timetable.Feeds {
		if f.URL == "" {
			continue
		}
		out = append(out, ics.Feed{ID: f.ID, URL: f.URL})
	}
	return out
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is read, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller may still run with defaults.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions.
// BasicAuth 비밀번호가 들어갈 수 있으므로 다른 사용자가 읽을 수 없게 저장한다.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".studyplan-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
