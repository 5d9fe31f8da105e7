// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"slices"
	"time"
)

// DefaultTitle is used when a conversation has no user text.
const DefaultTitle = "New Chat"

// TitleMaxRunes caps derived history titles.
const TitleMaxRunes = 50

// HistoryEntry is a persisted snapshot of a conversation.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Messages   []Message `json:"messages"`
	Timestamp  time.Time `json:"timestamp"`
	IsFavorite bool      `json:"is_favorite"`
}

// NewHistoryEntry snapshots msgs into a new entry stamped with the current
// time. The title comes from the first user message with text.
func NewHistoryEntry(msgs []Message) HistoryEntry {
	snapshot := make([]Message, len(msgs))
	for i := range msgs {
		snapshot[i] = *msgs[i].Clone()
		snapshot[i].IsStreaming = false
	}
	return HistoryEntry{
		ID:        generateID(),
		Title:     DeriveTitle(snapshot),
		Messages:  snapshot,
		Timestamp: time.Now(),
	}
}

// DeriveTitle returns the preview of the first user message with text.
func DeriveTitle(msgs []Message) string {
	for i := range msgs {
		if msgs[i].Role != RoleUser {
			continue
		}
		if title := msgs[i].Preview(TitleMaxRunes); title != "" {
			return title
		}
	}
	return DefaultTitle
}

// HasContextMessage reports whether the entry starts with a system message.
func (e HistoryEntry) HasContextMessage() bool {
	return len(e.Messages) > 0 && e.Messages[0].Role == RoleSystem
}

// Clone returns a deep copy of the entry.
func (e HistoryEntry) Clone() HistoryEntry {
	c := e
	c.Messages = make([]Message, len(e.Messages))
	for i := range e.Messages {
		c.Messages[i] = *e.Messages[i].Clone()
	}
	return c
}

// SortHistory orders entries newest first. Ties keep their relative order.
func SortHistory(entries []HistoryEntry) {
	slices.SortStableFunc(entries, func(a, b HistoryEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}

// History retention limits.
const (
	DefaultMaxHistory = 50
	MinMaxHistory     = 1
	MaxMaxHistory     = 1000
)

// ClampMaxHistory maps n into the accepted retention range. Zero selects
// the default.
func ClampMaxHistory(n int) int {
	switch {
	case n == 0:
		return DefaultMaxHistory
	case n < MinMaxHistory:
		return MinMaxHistory
	case n > MaxMaxHistory:
		return MaxMaxHistory
	default:
		return n
	}
}
