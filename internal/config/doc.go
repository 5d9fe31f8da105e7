// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for gleam.
//
// Supports TOML, JSON and YAML configuration files, with sensible defaults,
// environment variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (GLEAM_*, OPENROUTER_API_KEY, SILICONFLOW_API_KEY)
//   - The file given with --config
//   - ~/.gleam/config.toml
//   - Built-in defaults
//
// # Usage
//
//	mgr, err := config.NewManager(path, logger)
//	if err != nil {
//	    return err
//	}
//	go mgr.Watch(ctx)
//	settings := mgr.Settings()
package config
