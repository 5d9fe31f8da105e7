// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps each history entry as a JSON file named <id>.json.
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	maxCount int
}

// DefaultDir returns ~/.gleam/history.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gleam", "history"), nil
}

// NewFileStore opens (and creates) a file store in dir.
func NewFileStore(dir string, maxCount int, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{
		dir:      dir,
		maxCount: model.ClampMaxHistory(maxCount),
		logger:   logger.With("component", "history", "backend", "file"),
	}, nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Save writes entry and applies retention. An empty ID is filled in.
func (s *FileStore) Save(ctx context.Context, entry model.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(entry); err != nil {
		return err
	}
	return s.enforceLimit()
}

// List returns every entry, newest first. Unreadable files are skipped.
func (s *FileStore) List(ctx context.Context) ([]model.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAll()
}

// Get returns the entry with id.
func (s *FileStore) Get(ctx context.Context, id string) (model.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.HistoryEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// Search returns entries matching query, newest first.
func (s *FileStore) Search(ctx context.Context, query string) ([]model.HistoryEntry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Search(entries, query), nil
}

// ToggleFavorite flips the favorite flag. Un-favoriting re-applies retention,
// which may evict the entry itself.
func (s *FileStore) ToggleFavorite(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.load(id)
	if err != nil {
		return err
	}
	entry.IsFavorite = !entry.IsFavorite
	if err := s.write(entry); err != nil {
		return err
	}
	if !entry.IsFavorite {
		return s.enforceLimit()
	}
	return nil
}

// Delete removes the entry with id.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("deleting history entry: %w", err)
	}
	return nil
}

// SetMaxCount changes the retention limit. Lowering it evicts immediately.
func (s *FileStore) SetMaxCount(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.maxCount
	s.maxCount = model.ClampMaxHistory(n)
	if s.maxCount < prev {
		return s.enforceLimit()
	}
	return nil
}

// MaxCount returns the retention limit.
func (s *FileStore) MaxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxCount
}

// Close is a no-op; it exists so both backends share a lifecycle.
func (s *FileStore) Close() error {
	return nil
}

// =============================================================================
// HELPERS (caller holds mu)
// =============================================================================

func (s *FileStore) enforceLimit() error {
	entries, err := s.loadAll()
	if err != nil {
		return err
	}
	_, evicted := ApplyRetention(entries, s.maxCount)
	for _, e := range evicted {
		if err := os.Remove(s.filePath(e.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("evicting history entry %s: %w", e.ID, err)
		}
		s.logger.Debug("evicted history entry", "id", e.ID, "title", e.Title)
	}
	return nil
}

func (s *FileStore) write(entry model.HistoryEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history entry: %w", err)
	}
	if err := util.AtomicWriteFile(s.filePath(entry.ID), data, 0600); err != nil {
		return fmt.Errorf("writing history entry: %w", err)
	}
	return nil
}

func (s *FileStore) load(id string) (model.HistoryEntry, error) {
	var entry model.HistoryEntry
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entry, ErrEntryNotFound
		}
		return entry, fmt.Errorf("reading history entry: %w", err)
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, fmt.Errorf("decoding history entry %s: %w", id, err)
	}
	return entry, nil
}

func (s *FileStore) loadAll() ([]model.HistoryEntry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing history: %w", err)
	}

	entries := make([]model.HistoryEntry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entry, err := s.load(strings.TrimSuffix(f.Name(), ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable history entry", "file", f.Name(), "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	model.SortHistory(entries)
	return entries, nil
}

// filePath keeps IDs from escaping the store directory.
func (s *FileStore) filePath(id string) string {
	return filepath.Join(s.dir, filepath.Base(id)+".json")
}
