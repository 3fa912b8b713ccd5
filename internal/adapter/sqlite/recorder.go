package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
)

// Recorder mirrors refined records into a local SQLite table, one row per
// (date, hour). It implements pipeline.RecordSink.
type Recorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string, logger *slog.Logger) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	r := &Recorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite mirror opened", "path", path)
	return r, nil
}

func (r *Recorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS refined (
			date            TEXT    NOT NULL,
			hour            INTEGER NOT NULL,
			hour_start      TEXT    NOT NULL,
			pris_snitt_24   REAL    NOT NULL,
			pris_time       REAL    NOT NULL,
			pris_forhold_24 REAL    NOT NULL,
			pris_max        INTEGER NOT NULL,
			pris_min        INTEGER NOT NULL,
			in_6_l_8        INTEGER NOT NULL,
			in_0_6_high     INTEGER NOT NULL,
			in_6_12_high    INTEGER NOT NULL,
			in_12_18_high   INTEGER NOT NULL,
			in_18_24_high   INTEGER NOT NULL,
			t0_60           INTEGER NOT NULL,
			t60_90          INTEGER NOT NULL,
			t90_115         INTEGER NOT NULL,
			t115_140        INTEGER NOT NULL,
			t140_999        INTEGER NOT NULL,
			i8h_low         INTEGER NOT NULL,
			written_at      INTEGER NOT NULL,
			PRIMARY KEY (date, hour)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecord inserts rec, replacing an earlier row for the same date and hour.
func (r *Recorder) WriteRecord(ctx context.Context, rec domain.ClassificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO refined (
			date, hour, hour_start,
			pris_snitt_24, pris_time, pris_forhold_24, pris_max, pris_min,
			in_6_l_8, in_0_6_high, in_6_12_high, in_12_18_high, in_18_24_high,
			t0_60, t60_90, t90_115, t115_140, t140_999, i8h_low,
			written_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Date, rec.Hour, rec.Timestamp.Format(time.RFC3339),
		rec.Average, rec.Price, rec.Ratio, rec.MaxHour, rec.MinHour,
		rec.ShoulderLowBand, rec.HighNight, rec.HighMorning, rec.HighAfternoon, rec.HighEvening,
		rec.Below60, rec.From60To90, rec.From90To115, rec.From115To140, rec.Above140, rec.DailyLowBand,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: sqlite insert %s: %w", domain.ErrWrite, rec.Key(), err)
	}
	return nil
}

// Records returns the mirrored rows for date ordered by hour.
func (r *Recorder) Records(ctx context.Context, date string) ([]domain.ClassificationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
			date, hour, hour_start,
			pris_snitt_24, pris_time, pris_forhold_24, pris_max, pris_min,
			in_6_l_8, in_0_6_high, in_6_12_high, in_12_18_high, in_18_24_high,
			t0_60, t60_90, t90_115, t115_140, t140_999, i8h_low
		FROM refined WHERE date = ? ORDER BY hour`, date)
	if err != nil {
		return nil, fmt.Errorf("query refined: %w", err)
	}
	defer rows.Close()

	var out []domain.ClassificationRecord
	for rows.Next() {
		var (
			rec   domain.ClassificationRecord
			start string
		)
		if err := rows.Scan(
			&rec.Date, &rec.Hour, &start,
			&rec.Average, &rec.Price, &rec.Ratio, &rec.MaxHour, &rec.MinHour,
			&rec.ShoulderLowBand, &rec.HighNight, &rec.HighMorning, &rec.HighAfternoon, &rec.HighEvening,
			&rec.Below60, &rec.From60To90, &rec.From90To115, &rec.From115To140, &rec.Above140, &rec.DailyLowBand,
		); err != nil {
			return nil, fmt.Errorf("scan refined: %w", err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("parse hour_start %q: %w", start, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
