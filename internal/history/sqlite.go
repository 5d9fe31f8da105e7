// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	migrate "github.com/rubenv/sql-migrate"
	_ "modernc.org/sqlite"

	"github.com/jeranaias/gleam/internal/model"
)

// migrations is the schema history of the SQLite backend.
var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_history_entries",
			Up: []string{
				`CREATE TABLE history_entries (
					id          TEXT PRIMARY KEY,
					title       TEXT NOT NULL,
					messages    TEXT NOT NULL,
					created_at  INTEGER NOT NULL,
					is_favorite INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_history_entries_created ON history_entries(created_at DESC)`,
			},
			Down: []string{
				`DROP INDEX idx_history_entries_created`,
				`DROP TABLE history_entries`,
			},
		},
		{
			Id: "0002_history_favorites_index",
			Up: []string{
				`CREATE INDEX idx_history_entries_favorite ON history_entries(is_favorite, created_at DESC)`,
			},
			Down: []string{
				`DROP INDEX idx_history_entries_favorite`,
			},
		},
	},
}

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore keeps history entries in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu       sync.Mutex
	maxCount int
}

// OpenSQLite opens the database at path, creating it and running schema
// migrations as needed.
func OpenSQLite(path string, maxCount int, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "history", "backend", "sqlite")

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring database (%s): %w", pragma, err)
		}
	}

	n, err := migrate.Exec(db, "sqlite3", migrations, migrate.Up)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("history database ready", "path", path, "migrations_applied", n)
	return &SQLiteStore{
		db:       db,
		logger:   logger,
		maxCount: model.ClampMaxHistory(maxCount),
	}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Save inserts or replaces entry and applies retention in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, entry model.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	messages, err := json.Marshal(entry.Messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO history_entries (id, title, messages, created_at, is_favorite)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				messages = excluded.messages,
				created_at = excluded.created_at,
				is_favorite = excluded.is_favorite`,
			entry.ID, entry.Title, string(messages), entry.Timestamp.UnixNano(), entry.IsFavorite)
		if err != nil {
			return fmt.Errorf("saving history entry: %w", err)
		}
		return s.enforceLimit(ctx, tx)
	})
}

// List returns every entry, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, messages, created_at, is_favorite
		FROM history_entries
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns the entry with id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, messages, created_at, is_favorite
		FROM history_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.HistoryEntry{}, ErrEntryNotFound
	}
	return entry, err
}

// Search returns entries matching query, newest first.
func (s *SQLiteStore) Search(ctx context.Context, query string) ([]model.HistoryEntry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Search(entries, query), nil
}

// ToggleFavorite flips the favorite flag. Un-favoriting re-applies retention.
func (s *SQLiteStore) ToggleFavorite(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var fav bool
		err := tx.QueryRowContext(ctx, `SELECT is_favorite FROM history_entries WHERE id = ?`, id).Scan(&fav)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("reading favorite flag: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE history_entries SET is_favorite = ? WHERE id = ?`, !fav, id); err != nil {
			return fmt.Errorf("updating favorite flag: %w", err)
		}
		if fav {
			return s.enforceLimit(ctx, tx)
		}
		return nil
	})
}

// Delete removes the entry with id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting history entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// SetMaxCount changes the retention limit. Lowering it evicts immediately.
func (s *SQLiteStore) SetMaxCount(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.maxCount
	s.maxCount = model.ClampMaxHistory(n)
	if s.maxCount >= prev {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.enforceLimit(ctx, tx)
	})
}

// MaxCount returns the retention limit.
func (s *SQLiteStore) MaxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxCount
}

// =============================================================================
// HELPERS
// =============================================================================

// enforceLimit deletes the non-favorites beyond maxCount, oldest first.
func (s *SQLiteStore) enforceLimit(ctx context.Context, tx *sql.Tx) error {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM history_entries
		WHERE is_favorite = 0 AND id NOT IN (
			SELECT id FROM history_entries
			WHERE is_favorite = 0
			ORDER BY created_at DESC
			LIMIT ?
		)`, s.maxCount)
	if err != nil {
		return fmt.Errorf("applying retention: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("evicted history entries", "count", n, "max", s.maxCount)
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (model.HistoryEntry, error) {
	var (
		entry    model.HistoryEntry
		messages string
		created  int64
	)
	if err := row.Scan(&entry.ID, &entry.Title, &messages, &created, &entry.IsFavorite); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entry, err
		}
		return entry, fmt.Errorf("scanning history entry: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &entry.Messages); err != nil {
		return entry, fmt.Errorf("decoding messages of %s: %w", entry.ID, err)
	}
	entry.Timestamp = time.Unix(0, created)
	return entry, nil
}
