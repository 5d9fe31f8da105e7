// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/gleam/internal/model"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func entryAt(id string, minutes int, fav bool) model.HistoryEntry {
	return model.HistoryEntry{
		ID:         id,
		Title:      "title " + id,
		Timestamp:  base.Add(time.Duration(minutes) * time.Minute),
		IsFavorite: fav,
	}
}

func ids(entries []model.HistoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestApplyRetention_KeepsFavoritesAndNewest(t *testing.T) {
	entries := []model.HistoryEntry{
		entryAt("n5", 5, false),
		entryAt("f4", 4, true),
		entryAt("n3", 3, false),
		entryAt("n2", 2, false),
		entryAt("f1", 1, true),
		entryAt("n0", 0, false),
	}

	kept, evicted := ApplyRetention(entries, 2)

	assert.Equal(t, []string{"n5", "f4", "n3", "f1"}, ids(kept))
	assert.ElementsMatch(t, []string{"n2", "n0"}, ids(evicted))
}

func TestApplyRetention_Unlimited(t *testing.T) {
	entries := []model.HistoryEntry{entryAt("a", 1, false), entryAt("b", 2, false)}

	kept, evicted := ApplyRetention(entries, 0)
	assert.Equal(t, []string{"b", "a"}, ids(kept))
	assert.Empty(t, evicted)
}

func TestApplyRetention_Property(t *testing.T) {
	for _, tc := range []struct{ favs, others, max int }{
		{0, 10, 3},
		{5, 10, 3},
		{5, 4, 3},
		{20, 1, 1},
	} {
		t.Run(fmt.Sprintf("N%d_M%d_K%d", tc.favs, tc.others, tc.max), func(t *testing.T) {
			var entries []model.HistoryEntry
			minute := 0
			for i := 0; i < tc.favs; i++ {
				entries = append(entries, entryAt(fmt.Sprintf("f%d", i), minute, true))
				minute += 2
			}
			for i := 0; i < tc.others; i++ {
				entries = append(entries, entryAt(fmt.Sprintf("n%d", i), minute-3, false))
				minute++
			}

			kept, _ := ApplyRetention(entries, tc.max)

			var favs, others int
			for i, e := range kept {
				if e.IsFavorite {
					favs++
				} else {
					others++
				}
				if i > 0 {
					assert.False(t, e.Timestamp.After(kept[i-1].Timestamp), "kept must be newest first")
				}
			}
			assert.Equal(t, tc.favs, favs)
			assert.LessOrEqual(t, others, tc.max)
			assert.Equal(t, min(tc.others, tc.max), others)
		})
	}
}

func TestSearch(t *testing.T) {
	entries := []model.HistoryEntry{
		{ID: "1", Title: "Go generics", Messages: []model.Message{{Role: model.RoleUser, Content: "explain"}}},
		{ID: "2", Title: "Cooking", Messages: []model.Message{{Role: model.RoleAssistant, Content: "Use GENERIC flour"}}},
		{ID: "3", Title: "Other", Messages: []model.Message{{Role: model.RoleSystem, Content: "generic context"}}},
	}

	assert.Equal(t, []string{"1", "2"}, ids(Search(entries, "generic")))
	assert.Len(t, Search(entries, "  "), 3)
	assert.Empty(t, Search(entries, "missing"))
}
