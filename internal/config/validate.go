// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/jeranaias/gleam/internal/model"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every field and reports all problems at once. The
// returned error is a *multierror.Error of *ValidationError items.
func (c *Config) Validate() error {
	var result *multierror.Error
	fail := func(field, format string, args ...any) {
		result = multierror.Append(result, &ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if !slices.Contains([]string{ProviderOpenRouter, ProviderSiliconFlow}, c.Provider) {
		fail("provider", "invalid provider '%s', must be one of: openrouter, siliconflow", c.Provider)
	}
	if c.MaxHistoryCount < model.MinMaxHistory || c.MaxHistoryCount > model.MaxMaxHistory {
		fail("max_history_count", "must be between %d and %d", model.MinMaxHistory, model.MaxMaxHistory)
	}
	if c.RequestsPerMinute < 0 {
		fail("requests_per_minute", "must not be negative")
	}

	for _, u := range []struct{ field, raw string }{
		{"openrouter.base_url", c.OpenRouter.BaseURL},
		{"siliconflow.base_url", c.SiliconFlow.BaseURL},
		{"context.host_url", c.Context.HostURL},
	} {
		if u.raw != "" && !validHTTPURL(u.raw) {
			fail(u.field, "invalid URL '%s'", u.raw)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(c.DefaultParameters)) {
		if !model.IsKnownParameter(name) {
			fail("default_parameters."+name, "unknown parameter")
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.ModelParameters)) {
		for _, name := range slices.Sorted(maps.Keys(c.ModelParameters[id])) {
			if !model.IsKnownParameter(name) {
				fail(fmt.Sprintf("model_parameters.%s.%s", id, name), "unknown parameter")
			}
		}
	}

	switch c.History.Backend {
	case BackendFile, BackendSQLite:
	default:
		fail("history.backend", "invalid backend '%s', must be one of: file, sqlite", c.History.Backend)
	}

	switch c.Context.Source {
	case SourceNone:
	case SourceFile:
		if c.Context.DocumentPath == "" {
			fail("context.document_path", "required when context.source is 'file'")
		}
	case SourceBlock:
		if c.Context.HostURL == "" {
			fail("context.host_url", "required when context.source is 'block'")
		}
	default:
		fail("context.source", "invalid source '%s', must be one of: file, block", c.Context.Source)
	}

	return result.ErrorOrNil()
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
