// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/stream"
)

// Transport performs one chat completion call. It must invoke onEvent
// synchronously, in arrival order, and return only after the last event.
type Transport interface {
	Chat(ctx context.Context, req model.RequestContext, onEvent func(stream.Event)) (model.Result, error)
}

// ContextInjector supplies document context for a conversation. An empty
// string means no context is available.
type ContextInjector interface {
	Content(ctx context.Context) (string, error)
}

// ContextInjectorFunc adapts a function to ContextInjector.
type ContextInjectorFunc func(ctx context.Context) (string, error)

// Content calls f.
func (f ContextInjectorFunc) Content(ctx context.Context) (string, error) {
	return f(ctx)
}

// HistoryStore persists completed conversations.
type HistoryStore interface {
	Save(ctx context.Context, entry model.HistoryEntry) error
	List(ctx context.Context) ([]model.HistoryEntry, error)
	ToggleFavorite(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Settings is the configuration the controller reads for each request.
type Settings struct {
	Model             string
	APIKey            string
	ContextEnabled    bool
	DefaultParameters model.Parameters
	ModelParameters   map[string]model.Parameters
}

// Parameters returns the merged parameters for the selected model.
func (s Settings) Parameters() model.Parameters {
	return model.MergeParameters(s.DefaultParameters, s.ModelParameters[s.Model])
}

func (s Settings) validate() error {
	if s.Model == "" {
		return ErrNoModel
	}
	if s.APIKey == "" {
		return ErrNoCredential
	}
	return nil
}

// SettingsProvider returns the current settings. It is consulted at the
// start of every request so configuration reloads take effect.
type SettingsProvider interface {
	Settings() Settings
}

// StaticSettings is a SettingsProvider that never changes.
type StaticSettings Settings

// Settings returns s.
func (s StaticSettings) Settings() Settings {
	return Settings(s)
}
