// Package repository provides data access implementations
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// HeightStore provides the live water-surface reading and the per-day history buckets
type HeightStore interface {
	GetLiveHeight(ctx context.Context) (*entities.HeightSample, error)
	SaveLiveHeight(ctx context.Context, sample entities.HeightSample) error
	GetHistoryBucket(ctx context.Context, dateKey string) ([]entities.HistoryEntry, error)
	AppendHistory(ctx context.Context, dateKey string, entry entities.HistoryEntry) error
}

// EvaporationRepository persists computed evaporation results
type EvaporationRepository interface {
	SaveRollingResult(ctx context.Context, record entities.RollingRecord) error
	SaveDailyResult(ctx context.Context, record entities.DailyRecord) error
	GetRecentRolling(ctx context.Context, limit int) ([]entities.RollingRecord, error)
	GetDailyResults(ctx context.Context) ([]entities.DailyRecord, error)
	GetDailyResult(ctx context.Context, date string) (*entities.DailyRecord, error)
}

// SQLiteRepository implements HeightStore and EvaporationRepository on one SQLite file
type SQLiteRepository struct {
	db     *sql.DB
	DBPath string
	logger *zap.SugaredLogger
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS live_height (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	distance REAL NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS height_history (
	date_key TEXT NOT NULL,
	time_key TEXT NOT NULL,
	distance REAL NOT NULL,
	PRIMARY KEY (date_key, time_key)
);
CREATE TABLE IF NOT EXISTS evap_10min (
	timestamp INTEGER PRIMARY KEY,
	evap_mm REAL NOT NULL,
	h_prev REAL NOT NULL,
	h_now REAL NOT NULL,
	rain_10min REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS evap_daily (
	date TEXT PRIMARY KEY,
	evap_mm REAL NOT NULL,
	h7_yesterday REAL NOT NULL,
	h7_today REAL NOT NULL,
	rain_24h REAL NOT NULL,
	created_at INTEGER NOT NULL
);`

// NewSQLiteRepository opens (and if needed creates) the database at dbPath
func NewSQLiteRepository(dbPath string, logger *zap.SugaredLogger) (*SQLiteRepository, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "evaporation.db")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Infow("opening database", "path", dbPath)
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		DBPath: dbPath,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetLiveHeight returns the latest live sample, or nil when none was ever recorded
func (r *SQLiteRepository) GetLiveHeight(ctx context.Context) (*entities.HeightSample, error) {
	var (
		distance  float64
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, "SELECT distance, updated_at FROM live_height WHERE id = 1").
		Scan(&distance, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read live height: %w", err)
	}

	return &entities.HeightSample{
		Timestamp:  time.UnixMilli(updatedAt),
		DistanceMM: distance,
	}, nil
}

// SaveLiveHeight replaces the live sample
func (r *SQLiteRepository) SaveLiveHeight(ctx context.Context, sample entities.HeightSample) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO live_height(id, distance, updated_at) VALUES(1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		distance=excluded.distance,
		updated_at=excluded.updated_at`,
		sample.DistanceMM, sample.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save live height: %w", err)
	}
	return nil
}

// GetHistoryBucket returns every sample stored for one calendar day (DD-MM-YYYY), by time key
func (r *SQLiteRepository) GetHistoryBucket(ctx context.Context, dateKey string) ([]entities.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT time_key, distance
		FROM height_history
		WHERE date_key = ?
		ORDER BY time_key`, dateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", dateKey, err)
	}
	defer rows.Close()

	var result []entities.HistoryEntry
	for rows.Next() {
		var e entities.HistoryEntry
		if err := rows.Scan(&e.TimeKey, &e.DistanceMM); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during history iteration: %w", err)
	}
	return result, nil
}

// AppendHistory stores a sample in its day bucket; a second sample with the same time key replaces the first
func (r *SQLiteRepository) AppendHistory(ctx context.Context, dateKey string, entry entities.HistoryEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO height_history(date_key, time_key, distance) VALUES(?, ?, ?)
		ON CONFLICT(date_key, time_key) DO UPDATE SET
		distance=excluded.distance`,
		dateKey, entry.TimeKey, entry.DistanceMM)
	if err != nil {
		return fmt.Errorf("failed to append history for %s %s: %w", dateKey, entry.TimeKey, err)
	}
	return nil
}

// SaveRollingResult stores a 10-minute result, overwriting any record with the same timestamp
func (r *SQLiteRepository) SaveRollingResult(ctx context.Context, rec entities.RollingRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO evap_10min(timestamp, evap_mm, h_prev, h_now, rain_10min)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(timestamp) DO UPDATE SET
		evap_mm=excluded.evap_mm,
		h_prev=excluded.h_prev,
		h_now=excluded.h_now,
		rain_10min=excluded.rain_10min`,
		rec.Timestamp, rec.EvapMM, rec.HPrev, rec.HNow, rec.Rain10Min)
	if err != nil {
		return fmt.Errorf("failed to save rolling result %d: %w", rec.Timestamp, err)
	}
	r.logger.Debugw("saved rolling result", "timestamp", rec.Timestamp)
	return nil
}

// SaveDailyResult stores a daily result; re-running a date overwrites it
func (r *SQLiteRepository) SaveDailyResult(ctx context.Context, rec entities.DailyRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO evap_daily(date, evap_mm, h7_yesterday, h7_today, rain_24h, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
		evap_mm=excluded.evap_mm,
		h7_yesterday=excluded.h7_yesterday,
		h7_today=excluded.h7_today,
		rain_24h=excluded.rain_24h,
		created_at=excluded.created_at`,
		rec.Date, rec.EvapMM, rec.H7Yesterday, rec.H7Today, rec.Rain24h, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save daily result %s: %w", rec.Date, err)
	}
	r.logger.Debugw("saved daily result", "date", rec.Date)
	return nil
}

// GetRecentRolling returns the newest limit rolling results in ascending timestamp order
func (r *SQLiteRepository) GetRecentRolling(ctx context.Context, limit int) ([]entities.RollingRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp, evap_mm, h_prev, h_now, rain_10min FROM (
			SELECT timestamp, evap_mm, h_prev, h_now, rain_10min
			FROM evap_10min
			ORDER BY timestamp DESC
			LIMIT ?
		) ORDER BY timestamp`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rolling results: %w", err)
	}
	defer rows.Close()

	var result []entities.RollingRecord
	for rows.Next() {
		var rec entities.RollingRecord
		if err := rows.Scan(&rec.Timestamp, &rec.EvapMM, &rec.HPrev, &rec.HNow, &rec.Rain10Min); err != nil {
			return nil, fmt.Errorf("failed to scan rolling row: %w", err)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rolling iteration: %w", err)
	}
	return result, nil
}

// GetDailyResults returns every daily result, oldest first
func (r *SQLiteRepository) GetDailyResults(ctx context.Context) ([]entities.DailyRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, evap_mm, h7_yesterday, h7_today, rain_24h, created_at
		FROM evap_daily
		ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily results: %w", err)
	}
	defer rows.Close()

	var result []entities.DailyRecord
	for rows.Next() {
		rec, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during daily iteration: %w", err)
	}
	return result, nil
}

// GetDailyResult returns the result for one date (YYYY-MM-DD), or nil if there is none
func (r *SQLiteRepository) GetDailyResult(ctx context.Context, date string) (*entities.DailyRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT date, evap_mm, h7_yesterday, h7_today, rain_24h, created_at
		FROM evap_daily
		WHERE date = ?`, date)

	rec, err := scanDaily(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDaily(s scanner) (entities.DailyRecord, error) {
	var rec entities.DailyRecord
	err := s.Scan(&rec.Date, &rec.EvapMM, &rec.H7Yesterday, &rec.H7Today, &rec.Rain24h, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan daily row: %w", err)
	}
	return rec, nil
}
