package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	appLog "studyplan/internal/log"
	"studyplan/internal/model"
)

// eventRow is the persisted form of model.Event. Dates are stored as
// YYYY-MM-DD text so range queries compare lexically.
type eventRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Title       string `gorm:"not null"`
	Date        string `gorm:"size:10;not null;index"`
	TimeMinutes *int
	Duration    int    `gorm:"not null;default:60"`
	Kind        string `gorm:"size:32;not null"`
	Priority    string `gorm:"size:8;not null;default:medium"`
	SourceTag   string `gorm:"size:16;not null;default:task;index"`
	Completed   bool   `gorm:"not null;default:false"`
	CreatedAt   int64  `gorm:"autoCreateTime:nano"`
	UpdatedAt   time.Time
}

func (eventRow) TableName() string { return "schedule_events" }

type attendanceRow struct {
	ClassID    string `gorm:"primaryKey;size:128"`
	Date       string `gorm:"primaryKey;size:10"`
	Attendance string `gorm:"size:16;not null"`
	Completion string `gorm:"size:12;not null"`
	RecordedAt time.Time
}

func (attendanceRow) TableName() string { return "class_attendance" }

// SQLStore is a ScheduleStore and AttendanceStore backed by SQLite.
type SQLStore struct {
	db  *gorm.DB
	hub *hub

	// pubMu orders snapshot reads with their delivery so subscribers never
	// see an older view after a newer one.
	pubMu sync.Mutex
}

// OpenSQLite opens (and migrates) the SQLite database at path, creating the
// parent directory when needed.
func OpenSQLite(path string) (*SQLStore, error) {
	if path == "" {
		return nil, errors.New("store: database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create database dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}
	if err := db.AutoMigrate(&eventRow{}, &attendanceRow{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
	}

	appLog.Info("store: sqlite opened", "path", path)
	return &SQLStore{db: db, hub: newHub()}, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable(err)
	}
	return unavailable(sqlDB.PingContext(ctx))
}

func (s *SQLStore) Save(ctx context.Context, ev model.Event) error {
	row := toRow(ev)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(updatableColumns),
		}).
		Create(&row).Error
	if err != nil {
		return unavailable(err)
	}
	s.publish(ctx)
	return nil
}

func (s *SQLStore) Update(ctx context.Context, ev model.Event) error {
	row := toRow(ev)
	res := s.db.WithContext(ctx).Model(&eventRow{}).Where("id = ?", ev.ID).
		Select(updatableColumns).Updates(&row)
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s: %w", ev.ID, ErrNotFound)
	}
	s.publish(ctx)
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&eventRow{})
	if res.Error != nil {
		return false, unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.publish(ctx)
	return true, nil
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (model.Event, bool, error) {
	var row eventRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Event{}, false, nil
	}
	if err != nil {
		return model.Event{}, false, unavailable(err)
	}
	ev, err := fromRow(row)
	if err != nil {
		return model.Event{}, false, err
	}
	return ev, true, nil
}

func (s *SQLStore) EventsBetween(ctx context.Context, start, end model.Date) ([]model.Event, error) {
	return s.query(ctx, s.db.WithContext(ctx).Where("date BETWEEN ? AND ?", start.String(), end.String()))
}

func (s *SQLStore) MoveEventDate(ctx context.Context, id string, date model.Date) (bool, error) {
	res := s.db.WithContext(ctx).Model(&eventRow{}).Where("id = ?", id).Update("date", date.String())
	if res.Error != nil {
		return false, unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.publish(ctx)
	return true, nil
}

func (s *SQLStore) EventsForDate(ctx context.Context, date model.Date) ([]model.Event, error) {
	return s.EventsBetween(ctx, date, date)
}

func (s *SQLStore) EventsForWeek(ctx context.Context, start model.Date) ([]model.Event, error) {
	return s.EventsBetween(ctx, start, start.AddDays(6))
}

func (s *SQLStore) ImportEvents(ctx context.Context, evs []model.Event) error {
	if len(evs) == 0 {
		return nil
	}
	rows := make([]eventRow, 0, len(evs))
	for _, ev := range evs {
		rows = append(rows, toRow(ev))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(updatableColumns),
		}).CreateInBatches(&rows, 200).Error
	})
	if err != nil {
		return unavailable(err)
	}
	appLog.Info("store: events imported", "count", len(rows))
	s.publish(ctx)
	return nil
}

// Subscribe registers under pubMu, so a write that commits while the initial
// snapshot is read is published again once the subscriber is in place.
func (s *SQLStore) Subscribe() (<-chan []model.Event, func()) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	all, err := s.all(context.Background())
	if err != nil {
		appLog.Error("store: initial snapshot for subscriber failed", err)
		all = []model.Event{}
	}
	return s.hub.subscribe(all)
}

func (s *SQLStore) SaveAttendance(ctx context.Context, a model.ClassAttendance) error {
	row := attendanceRow{
		ClassID:    a.ClassID,
		Date:       a.Date.String(),
		Attendance: string(a.Attendance),
		Completion: string(a.Completion),
		RecordedAt: a.Timestamp,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	return unavailable(err)
}

func (s *SQLStore) RecordsForDate(ctx context.Context, date model.Date) ([]model.ClassAttendance, error) {
	var rows []attendanceRow
	err := s.db.WithContext(ctx).Where("date = ?", date.String()).Order("class_id").Find(&rows).Error
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]model.ClassAttendance, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ClassAttendance{
			ClassID:    r.ClassID,
			Date:       date,
			Attendance: model.NormalizeAttendance(r.Attendance),
			Completion: model.CompletionStatus(r.Completion),
			Timestamp:  r.RecordedAt,
		})
	}
	return out, nil
}

var updatableColumns = []string{"title", "date", "time_minutes", "duration", "kind", "priority", "source_tag", "completed", "updated_at"}

func (s *SQLStore) query(ctx context.Context, tx *gorm.DB) ([]model.Event, error) {
	var rows []eventRow
	err := tx.Order("date").
		Order("time_minutes IS NULL").
		Order("time_minutes").
		Order("created_at").
		Order("rowid").
		Find(&rows).Error
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := fromRow(r)
		if err != nil {
			appLog.Error("store: skipping unreadable row", err, "event_id", r.ID)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *SQLStore) all(ctx context.Context) ([]model.Event, error) {
	return s.query(ctx, s.db.WithContext(ctx))
}

// publish pushes a fresh snapshot to subscribers. Failures are logged; the
// write itself already succeeded.
func (s *SQLStore) publish(ctx context.Context) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if !s.hub.active() {
		return
	}
	all, err := s.all(context.WithoutCancel(ctx))
	if err != nil {
		appLog.Error("store: snapshot for subscribers failed", err)
		return
	}
	s.hub.publish(all)
}

func toRow(ev model.Event) eventRow {
	row := eventRow{
		ID:        ev.ID,
		Title:     ev.Title,
		Date:      ev.Date.String(),
		Duration:  ev.Duration(),
		Kind:      string(ev.Kind),
		Priority:  string(ev.Priority),
		SourceTag: string(ev.SourceTag),
		Completed: ev.IsCompleted,
	}
	if row.Priority == "" {
		row.Priority = string(model.PriorityMedium)
	}
	if row.SourceTag == "" {
		row.SourceTag = string(model.SourceTask)
	}
	if ev.Time != nil {
		m := int(*ev.Time)
		row.TimeMinutes = &m
	}
	return row
}

func fromRow(r eventRow) (model.Event, error) {
	date, err := model.ParseDate(r.Date)
	if err != nil {
		return model.Event{}, err
	}
	ev := model.Event{
		ID:              r.ID,
		Title:           r.Title,
		Date:            date,
		DurationMinutes: r.Duration,
		Kind:            model.Kind(r.Kind),
		Priority:        model.Priority(r.Priority),
		SourceTag:       model.SourceTag(r.SourceTag),
		IsCompleted:     r.Completed,
	}
	if r.TimeMinutes != nil {
		c := model.Clock(*r.TimeMinutes)
		ev.Time = &c
	}
	return ev, nil
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
