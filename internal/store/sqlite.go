package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mrcode/glucose-spikes/internal/models"
)

const schema = `
	CREATE TABLE IF NOT EXISTS meals (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		gl REAL NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS meal_groups (
		position INTEGER PRIMARY KEY,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		description TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS bypasses (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		reason TEXT NOT NULL
	);
`

// SQLiteStore keeps the snapshot in a SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "backend", "sqlite")

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		logger.Warn("failed to set WAL mode", "error", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		logger.Warn("failed to set synchronous mode", "error", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Load reads the snapshot
func (s *SQLiteStore) Load(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot

	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, gl, description FROM meals ORDER BY timestamp, id`)
	if err != nil {
		return snap, fmt.Errorf("loading meals: %w", err)
	}
	for rows.Next() {
		var (
			m  models.Meal
			ts int64
		)
		if err := rows.Scan(&m.ID, &ts, &m.GlycemicLoad, &m.Note); err != nil {
			_ = rows.Close()
			return snap, err
		}
		m.Time = time.Unix(ts, 0)
		snap.Meals = append(snap.Meals, m)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT start_time, end_time, description FROM meal_groups ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("loading groups: %w", err)
	}
	for rows.Next() {
		var (
			g     models.Group
			start int64
			end   sql.NullInt64
		)
		if err := rows.Scan(&start, &end, &g.Description); err != nil {
			_ = rows.Close()
			return snap, err
		}
		g.Start = time.Unix(start, 0)
		if end.Valid {
			t := time.Unix(end.Int64, 0)
			g.End = &t
		}
		snap.Groups = append(snap.Groups, g)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, timestamp, reason FROM bypasses ORDER BY timestamp, id`)
	if err != nil {
		return snap, fmt.Errorf("loading bypasses: %w", err)
	}
	for rows.Next() {
		var (
			b  models.Bypass
			ts int64
		)
		if err := rows.Scan(&b.ID, &ts, &b.Reason); err != nil {
			_ = rows.Close()
			return snap, err
		}
		b.Time = time.Unix(ts, 0)
		snap.Bypasses = append(snap.Bypasses, b)
	}
	return snap, closeRows(rows)
}

// Save replaces the stored snapshot with snap in one transaction
func (s *SQLiteStore) Save(ctx context.Context, snap models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"meals", "meal_groups", "bypasses"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO meals (id, timestamp, gl, description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, m := range snap.Meals {
		if _, err := stmt.ExecContext(ctx, m.ID, m.Time.Unix(), m.GlycemicLoad, m.Note); err != nil {
			return fmt.Errorf("saving meal %s: %w", m.ID, err)
		}
	}

	for i, g := range snap.Groups {
		var end sql.NullInt64
		if g.End != nil {
			end = sql.NullInt64{Int64: g.End.Unix(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meal_groups (position, start_time, end_time, description) VALUES (?, ?, ?, ?)`,
			i, g.Start.Unix(), end, g.Description); err != nil {
			return fmt.Errorf("saving group %d: %w", i+1, err)
		}
	}

	for _, b := range snap.Bypasses {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bypasses (id, timestamp, reason) VALUES (?, ?, ?)`,
			b.ID, b.Time.Unix(), b.Reason); err != nil {
			return fmt.Errorf("saving bypass %s: %w", b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "saved snapshot",
		"meals", len(snap.Meals),
		"groups", len(snap.Groups),
		"bypasses", len(snap.Bypasses))
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}
