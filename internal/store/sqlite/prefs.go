// Package sqlite is the default preference store: one row per symbol in a
// WAL-mode SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chartdesk/internal/model"
)

// PreferencesStore implements model.PreferencesStore on SQLite.
type PreferencesStore struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *PreferencesStore) DB() *sql.DB { return s.db }

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*PreferencesStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return &PreferencesStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS chart_preferences (
			symbol          TEXT    PRIMARY KEY,
			chart_type      TEXT    NOT NULL,
			timeframe       TEXT    NOT NULL,
			enabled_periods TEXT    NOT NULL,
			rsi_enabled     INTEGER NOT NULL,
			macd_enabled    INTEGER NOT NULL,
			bb_enabled      INTEGER NOT NULL,
			volume_enabled  INTEGER NOT NULL,
			visibility      TEXT    NOT NULL,
			updated_at      INTEGER NOT NULL
		);
	`)
	return err
}

// Get implements model.PreferencesStore.
func (s *PreferencesStore) Get(ctx context.Context, symbol string) (*model.ChartPreferences, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, chart_type, timeframe, enabled_periods, rsi_enabled, macd_enabled,
		       bb_enabled, volume_enabled, visibility, updated_at
		FROM chart_preferences
		WHERE symbol = ?
	`, strings.ToUpper(symbol))

	var (
		p                     model.ChartPreferences
		chartType, timeframe  string
		periodsJSON, visJSON  string
		rsi, macd, bb, volume bool
		updatedAt             int64
	)
	err := row.Scan(&p.Symbol, &chartType, &timeframe, &periodsJSON, &rsi, &macd, &bb, &volume, &visJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get prefs %s: %w", symbol, err)
	}

	if p.ChartType, err = model.ParseChartType(chartType); err != nil {
		return nil, fmt.Errorf("sqlite prefs %s: %w", symbol, err)
	}
	p.Timeframe = model.Timeframe(timeframe)
	if err := json.Unmarshal([]byte(periodsJSON), &p.EnabledPeriods); err != nil {
		return nil, fmt.Errorf("sqlite prefs %s periods: %w", symbol, err)
	}
	if err := json.Unmarshal([]byte(visJSON), &p.Visibility); err != nil {
		return nil, fmt.Errorf("sqlite prefs %s visibility: %w", symbol, err)
	}
	p.RSIEnabled, p.MACDEnabled, p.BBEnabled, p.VolumeEnabled = rsi, macd, bb, volume
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

// Put implements model.PreferencesStore as an upsert.
func (s *PreferencesStore) Put(ctx context.Context, p *model.ChartPreferences) error {
	periods, err := json.Marshal(p.EnabledPeriods)
	if err != nil {
		return err
	}
	vis := p.Visibility
	if vis == nil {
		vis = model.VisibilityFlags{}
	}
	visJSON, err := json.Marshal(vis)
	if err != nil {
		return err
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chart_preferences (symbol, chart_type, timeframe, enabled_periods, rsi_enabled,
		                               macd_enabled, bb_enabled, volume_enabled, visibility, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			chart_type      = excluded.chart_type,
			timeframe       = excluded.timeframe,
			enabled_periods = excluded.enabled_periods,
			rsi_enabled     = excluded.rsi_enabled,
			macd_enabled    = excluded.macd_enabled,
			bb_enabled      = excluded.bb_enabled,
			volume_enabled  = excluded.volume_enabled,
			visibility      = excluded.visibility,
			updated_at      = excluded.updated_at
	`, strings.ToUpper(p.Symbol), p.ChartType.String(), string(p.Timeframe), string(periods),
		p.RSIEnabled, p.MACDEnabled, p.BBEnabled, p.VolumeEnabled, string(visJSON), updated.Unix())
	if err != nil {
		return fmt.Errorf("sqlite put prefs %s: %w", p.Symbol, err)
	}
	return nil
}

// Close closes the database.
func (s *PreferencesStore) Close() error {
	return s.db.Close()
}
