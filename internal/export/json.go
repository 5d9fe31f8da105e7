// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/gleam/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations to JSON format.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Timestamp  time.Time       `json:"timestamp"`
	IsFavorite bool            `json:"is_favorite"`
	Messages   []model.Message `json:"messages"`
	ExportedAt *time.Time      `json:"exported_at,omitempty"`
}

// Export converts a conversation to indented JSON. The message shape is the
// same one the history store writes, so an export can be re-imported.
func (e *JSONExporter) Export(entry model.HistoryEntry) ([]byte, error) {
	doc := jsonDocument{
		ID:         entry.ID,
		Title:      entry.Title,
		Timestamp:  entry.Timestamp,
		IsFavorite: entry.IsFavorite,
		Messages:   visibleMessages(entry, e.options),
	}
	if e.options.IncludeMetadata {
		now := time.Now().UTC()
		doc.ExportedAt = &now
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
