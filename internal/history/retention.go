// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"errors"
	"slices"
	"strings"

	"github.com/jeranaias/gleam/internal/model"
)

// ErrEntryNotFound is returned when no entry has the requested ID.
var ErrEntryNotFound = errors.New("history entry not found")

// ApplyRetention splits entries into those to keep and those to evict.
// Favorites are always kept. Non-favorites are kept newest first up to
// maxCount; maxCount <= 0 keeps everything. kept is sorted newest first.
func ApplyRetention(entries []model.HistoryEntry, maxCount int) (kept, evicted []model.HistoryEntry) {
	var favorites, others []model.HistoryEntry
	for _, e := range entries {
		if e.IsFavorite {
			favorites = append(favorites, e)
		} else {
			others = append(others, e)
		}
	}

	model.SortHistory(others)
	if maxCount > 0 && len(others) > maxCount {
		evicted = slices.Clone(others[maxCount:])
		others = others[:maxCount]
	}

	kept = append(favorites, others...)
	model.SortHistory(kept)
	return kept, evicted
}

// Search returns the entries whose title or message text contains query,
// ignoring case. Order is preserved.
func Search(entries []model.HistoryEntry, query string) []model.HistoryEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}
	var out []model.HistoryEntry
	for _, e := range entries {
		if matches(e, q) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e model.HistoryEntry, q string) bool {
	if strings.Contains(strings.ToLower(e.Title), q) {
		return true
	}
	for _, m := range e.Messages {
		if m.Role != model.RoleSystem && strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	return false
}
