// Package storage keeps imported detection series in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"occupancy/internal/core"
	"occupancy/internal/source"

	_ "modernc.org/sqlite"
)

const (
	deleteSeriesSQL = `DELETE FROM detections WHERE location = ?`
	insertRecordSQL = `INSERT INTO detections (location, date, category, people_count) VALUES (?, ?, ?, ?)`
	selectSeriesSQL = `SELECT date, category, people_count FROM detections WHERE location = ? ORDER BY id`
	countSeriesSQL  = `SELECT COUNT(*) FROM detections WHERE location = ?`
)

type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
}

var (
	_ source.SeriesLoader = (*SQLiteRepository)(nil)
	_ source.Describer    = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteRepository{db: db, dbPath: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Describe(core.Location) string {
	return r.dbPath
}

// ReplaceSeries atomically swaps every stored record of the series' location
// for the records of series, keeping their order.
func (r *SQLiteRepository) ReplaceSeries(ctx context.Context, series core.LocationSeries) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	loc := series.Location().String()
	if _, err = tx.ExecContext(ctx, deleteSeriesSQL, loc); err != nil {
		return fmt.Errorf("delete %s: %w", loc, err)
	}
	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range series.Records() {
		if _, err = stmt.ExecContext(ctx, loc, rec.Date.String(), rec.Category, rec.Count); err != nil {
			return fmt.Errorf("insert %s %s: %w", loc, rec.Date, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Series stored in SQLite", "location", loc, "records", series.Len())
	return nil
}

// Count returns the number of stored records for loc.
func (r *SQLiteRepository) Count(ctx context.Context, loc core.Location) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countSeriesSQL, loc.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", loc, err)
	}
	return n, nil
}

// Load returns the stored series of loc in import order. A location with no
// rows yields an empty series; callers decide whether that is an error.
func (r *SQLiteRepository) Load(ctx context.Context, loc core.Location) (core.LocationSeries, error) {
	if _, err := core.ParseLocation(string(loc)); err != nil {
		return core.LocationSeries{}, err
	}
	fail := func(err error) (core.LocationSeries, error) {
		return core.LocationSeries{}, &core.LoadError{Location: loc, Source: r.dbPath, Err: err}
	}

	rows, err := r.db.QueryContext(ctx, selectSeriesSQL, loc.String())
	if err != nil {
		return fail(fmt.Errorf("query: %w", err))
	}
	defer rows.Close()

	var records []core.DetectionRecord
	for rows.Next() {
		var (
			date     string
			category string
			count    int64
		)
		if err := rows.Scan(&date, &category, &count); err != nil {
			return fail(fmt.Errorf("scan: %w", err))
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return fail(fmt.Errorf("stored date %q: %w", date, err))
		}
		records = append(records, core.DetectionRecord{Date: d, Category: category, Count: count})
	}
	if err := rows.Err(); err != nil {
		return fail(err)
	}

	s, err := core.NewLocationSeries(loc, records)
	if err != nil {
		return fail(err)
	}
	return s, nil
}
