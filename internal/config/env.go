// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v9"
)

// envOverrides lists the supported environment variables. Pointer fields
// stay nil when the variable is unset.
type envOverrides struct {
	Model          *string `env:"GLEAM_MODEL"`
	Provider       *string `env:"GLEAM_PROVIDER"`
	OpenRouterKey  *string `env:"OPENROUTER_API_KEY"`
	SiliconFlowKey *string `env:"SILICONFLOW_API_KEY"`
	EnableContext  *bool   `env:"GLEAM_ENABLE_CONTEXT"`
	MaxHistory     *int    `env:"GLEAM_MAX_HISTORY"`
	HistoryBackend *string `env:"GLEAM_HISTORY_BACKEND"`
	Debug          *bool   `env:"GLEAM_DEBUG"`
}

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - GLEAM_MODEL: overrides model
//   - GLEAM_PROVIDER: overrides provider
//   - OPENROUTER_API_KEY: overrides openrouter.api_key
//   - SILICONFLOW_API_KEY: overrides siliconflow.api_key
//   - GLEAM_ENABLE_CONTEXT: overrides enable_context
//   - GLEAM_MAX_HISTORY: overrides max_history_count
//   - GLEAM_HISTORY_BACKEND: overrides history.backend
//   - GLEAM_DEBUG: overrides debug
func (c *Config) ApplyEnvOverrides(environ []string) error {
	return c.applyEnv(environ)
}

func (c *Config) applyEnv(environ []string) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: toMap(environ)}); err != nil {
		return fmt.Errorf("parsing environment overrides: %w", err)
	}

	setString(&c.Model, o.Model)
	setString(&c.Provider, o.Provider)
	setString(&c.OpenRouter.APIKey, o.OpenRouterKey)
	setString(&c.SiliconFlow.APIKey, o.SiliconFlowKey)
	setString(&c.History.Backend, o.HistoryBackend)
	if o.EnableContext != nil {
		c.EnableContext = *o.EnableContext
	}
	if o.MaxHistory != nil {
		c.MaxHistoryCount = *o.MaxHistory
	}
	if o.Debug != nil {
		c.Debug = *o.Debug
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func toMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}
