// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"slices"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes one model offered by a provider.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	Description string `json:"description,omitempty"`

	// ContextLength is the maximum context window in tokens (0 if unknown)
	ContextLength int `json:"context_length,omitempty"`

	InputModalities     []string `json:"input_modalities,omitempty"`
	OutputModalities    []string `json:"output_modalities,omitempty"`
	SupportedParameters []string `json:"supported_parameters,omitempty"`
}

// DisplayName returns Name, or ID when no name is known.
func (m ModelInfo) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// ContextString returns a compact context window label such as "128K".
func (m ModelInfo) ContextString() string {
	switch {
	case m.ContextLength <= 0:
		return "-"
	case m.ContextLength >= 1000000:
		return fmt.Sprintf("%.1fM", float64(m.ContextLength)/1000000)
	case m.ContextLength >= 1000:
		return fmt.Sprintf("%dK", m.ContextLength/1000)
	default:
		return fmt.Sprintf("%d", m.ContextLength)
	}
}

// AcceptsImages reports whether the model takes image input.
func (m ModelInfo) AcceptsImages() bool {
	return slices.Contains(m.InputModalities, "image")
}

// ProducesImages reports whether the model can return images.
func (m ModelInfo) ProducesImages() bool {
	return slices.Contains(m.OutputModalities, "image")
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is an immutable, ID-sorted list of models.
type Catalog struct {
	models []ModelInfo
}

// NewCatalog copies models into a catalog sorted by ID. Duplicate IDs keep
// the first occurrence.
func NewCatalog(models []ModelInfo) Catalog {
	seen := make(map[string]bool, len(models))
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b ModelInfo) int { return strings.Compare(a.ID, b.ID) })
	return Catalog{models: out}
}

// Len returns the number of models.
func (c Catalog) Len() int {
	return len(c.models)
}

// Models returns a copy of the model list.
func (c Catalog) Models() []ModelInfo {
	return slices.Clone(c.models)
}

// IDs returns all model IDs in catalog order.
func (c Catalog) IDs() []string {
	ids := make([]string, len(c.models))
	for i, m := range c.models {
		ids[i] = m.ID
	}
	return ids
}

// Get looks up a model by ID.
func (c Catalog) Get(id string) (ModelInfo, bool) {
	i, found := slices.BinarySearchFunc(c.models, id, func(m ModelInfo, id string) int {
		return strings.Compare(m.ID, id)
	})
	if !found {
		return ModelInfo{}, false
	}
	return c.models[i], true
}

// SupportsImageOutput reports whether the model with id can return images.
func (c Catalog) SupportsImageOutput(id string) bool {
	m, ok := c.Get(id)
	return ok && m.ProducesImages()
}

// Filter returns the models whose ID or name contains query, ignoring case.
func (c Catalog) Filter(query string) []ModelInfo {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.Models()
	}
	var out []ModelInfo
	for _, m := range c.models {
		if strings.Contains(strings.ToLower(m.ID), q) || strings.Contains(strings.ToLower(m.Name), q) {
			out = append(out, m)
		}
	}
	return out
}
