// Package sqlite stores the ledger snapshot in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"budget/internal/core"
)

const metaNextID = "next_id"

type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates the database directory if needed, opens the database and
// applies pending migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
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
		return nil, err
	}

	return &Store{db: db, path: dbPath, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load reads the last saved snapshot. A database that has never been saved
// to yields core.ErrSnapshotNotFound.
func (s *Store) Load(ctx context.Context) (core.Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = ?`, metaNextID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, core.ErrSnapshotNotFound
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("read ledger meta: %w", err)
	}
	nextID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: next_id %q", core.ErrSnapshotCorrupt, raw)
	}

	snap := core.Snapshot{NextID: nextID, Expenses: []core.Expense{}, Categories: []string{}}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount_cents, category, description, date FROM expenses ORDER BY position`)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			e    core.Expense
			date string
		)
		if err := rows.Scan(&e.ID, &e.Amount.Cents, &e.Category, &e.Description, &date); err != nil {
			return core.Snapshot{}, fmt.Errorf("scan expense: %w", err)
		}
		if date != "" {
			if e.Date, err = core.ParseDate(date); err != nil {
				return core.Snapshot{}, fmt.Errorf("%w: expense %d: %v", core.ErrSnapshotCorrupt, e.ID, err)
			}
		}
		snap.Expenses = append(snap.Expenses, e)
	}
	if err := rows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("iterate expenses: %w", err)
	}

	crows, err := s.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("query categories: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var name string
		if err := crows.Scan(&name); err != nil {
			return core.Snapshot{}, fmt.Errorf("scan category: %w", err)
		}
		snap.Categories = append(snap.Categories, name)
	}
	if err := crows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("iterate categories: %w", err)
	}
	return snap, nil
}

// Save replaces the stored snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, snap core.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM expenses`, `DELETE FROM categories`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear ledger: %w", err)
		}
	}

	insExp, err := tx.PrepareContext(ctx,
		`INSERT INTO expenses (position, id, amount_cents, category, description, date) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare expense insert: %w", err)
	}
	defer insExp.Close()
	for i, e := range snap.Expenses {
		if _, err := insExp.ExecContext(ctx, i, e.ID, e.Amount.Cents, e.Category, e.Description, e.Date.String()); err != nil {
			return fmt.Errorf("insert expense %d: %w", e.ID, err)
		}
	}

	insCat, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare category insert: %w", err)
	}
	defer insCat.Close()
	for _, c := range snap.Categories {
		if _, err := insCat.ExecContext(ctx, c); err != nil {
			return fmt.Errorf("insert category %q: %w", c, err)
		}
	}

	nextID := snap.NextID
	if m := snap.MaxID() + 1; m > nextID {
		nextID = m
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaNextID, strconv.FormatInt(nextID, 10)); err != nil {
		return fmt.Errorf("write ledger meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}

	s.logger.DebugContext(ctx, "Ledger saved to SQLite",
		"db_path", s.path,
		"records", len(snap.Expenses),
		"categories", len(snap.Categories))
	return nil
}
