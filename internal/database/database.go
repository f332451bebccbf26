// Package database is the SQLite backend of the cafeteria store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cafeteria/internal/models"
	"cafeteria/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps the SQLite connection. Rows keep their insertion order through the
// autoincrement id, which is also the queue order of reservations.
type DB struct {
	*sql.DB
	path   string
	loc    *time.Location
	logger *zerolog.Logger
}

// NewDB opens the database at path and creates the tables if needed.
// Dates read back are interpreted in loc.
func NewDB(path string, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	instance := &DB{DB: db, path: path, loc: loc, logger: logger}
	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file location.
func (db *DB) Path() string { return db.path }

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS days (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date_iso TEXT NOT NULL,
			jour TEXT NOT NULL,
			menu TEXT NOT NULL DEFAULT '',
			open BOOLEAN NOT NULL DEFAULT 0,
			disabled BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_days_date ON days(date_iso)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date_iso TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_date ON reservations(date_iso)`,

		// Amounts are stored as decimal strings.
		`CREATE TABLE IF NOT EXISTS till_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date_iso TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			base TEXT NOT NULL DEFAULT '0',
			beverage TEXT NOT NULL DEFAULT '0',
			chocolate TEXT NOT NULL DEFAULT '0',
			total TEXT NOT NULL DEFAULT '0',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_till_entries_date ON till_entries(date_iso)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) ListDays(ctx context.Context) ([]models.Day, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT date_iso, jour, menu, open, disabled FROM days ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Day
	for rows.Next() {
		var iso string
		var d models.Day
		if err := rows.Scan(&iso, &d.WeekdayLabel, &d.Menu, &d.IsOpen, &d.IsDisabled); err != nil {
			return nil, err
		}
		date, err := models.ParseDate(iso, db.loc)
		if err != nil {
			db.logger.Warn().Str("date_iso", iso).Msg("skipping day with invalid date")
			continue
		}
		d.Date = date
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *DB) SetDayOpen(ctx context.Context, date time.Time, open bool) (bool, error) {
	res, err := db.ExecContext(ctx,
		"UPDATE days SET open = ? WHERE date_iso = ?",
		open, models.DateKey(date),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) AppendDays(ctx context.Context, days ...models.Day) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, d := range days {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO days (date_iso, jour, menu, open, disabled) VALUES (?, ?, ?, ?, ?)",
				models.DateKey(d.Date), d.WeekdayLabel, d.Menu, d.IsOpen, d.IsDisabled,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) AppendReservations(ctx context.Context, rs ...models.Reservation) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rs {
			createdAt := r.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO reservations (date_iso, name, created_at) VALUES (?, ?, ?)",
				models.DateKey(r.Date), r.Name, createdAt.UTC(),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) ListReservations(ctx context.Context, date time.Time) ([]models.Reservation, error) {
	return db.queryReservations(ctx,
		"SELECT date_iso, name, created_at FROM reservations WHERE date_iso = ? ORDER BY id",
		models.DateKey(date),
	)
}

func (db *DB) ListAllReservations(ctx context.Context) ([]models.Reservation, error) {
	return db.queryReservations(ctx, "SELECT date_iso, name, created_at FROM reservations ORDER BY id")
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...interface{}) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		var iso string
		var r models.Reservation
		if err := rows.Scan(&iso, &r.Name, &r.CreatedAt); err != nil {
			return nil, err
		}
		if r.Date, err = models.ParseDate(iso, db.loc); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteFirstReservation trims stored names in Go so that the comparison matches
// the other backends exactly.
func (db *DB) DeleteFirstReservation(ctx context.Context, date time.Time, name string) (bool, error) {
	found := false
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT id, name FROM reservations WHERE date_iso = ? ORDER BY id",
			models.DateKey(date),
		)
		if err != nil {
			return err
		}
		var id int64 = -1
		for rows.Next() {
			var rowID int64
			var rowName string
			if err := rows.Scan(&rowID, &rowName); err != nil {
				rows.Close()
				return err
			}
			if strings.TrimSpace(rowName) == name {
				id = rowID
				break
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if id < 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM reservations WHERE id = ?", id); err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (db *DB) AppendTillEntries(ctx context.Context, entries ...models.TillEntry) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			createdAt := e.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO till_entries (date_iso, name, kind, base, beverage, chocolate, total, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				models.DateKey(e.Date), e.Name, string(e.Kind),
				e.Base.String(), e.Beverage.String(), e.Chocolate.String(), e.LineTotal.String(),
				createdAt.UTC(),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) ListTillEntries(ctx context.Context, date time.Time) ([]models.TillEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT date_iso, name, kind, base, beverage, chocolate, total, created_at
		FROM till_entries WHERE date_iso = ? ORDER BY id`,
		models.DateKey(date),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TillEntry
	for rows.Next() {
		var iso, kind, base, beverage, chocolate, total string
		var e models.TillEntry
		if err := rows.Scan(&iso, &e.Name, &kind, &base, &beverage, &chocolate, &total, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Date, err = models.ParseDate(iso, db.loc); err != nil {
			return nil, fmt.Errorf("till entry date %q: %w", iso, err)
		}
		e.Kind = models.TillKind(kind)
		if e.Base, err = decimal.NewFromString(base); err != nil {
			return nil, fmt.Errorf("till entry base %q: %w", base, err)
		}
		if e.Beverage, err = decimal.NewFromString(beverage); err != nil {
			return nil, fmt.Errorf("till entry beverage %q: %w", beverage, err)
		}
		if e.Chocolate, err = decimal.NewFromString(chocolate); err != nil {
			return nil, fmt.Errorf("till entry chocolate %q: %w", chocolate, err)
		}
		if e.LineTotal, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("till entry total %q: %w", total, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
