// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/gleam/internal/chat"
	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/util"
)

// Provider names.
const (
	ProviderOpenRouter  = "openrouter"
	ProviderSiliconFlow = "siliconflow"
)

// History backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Context document sources.
const (
	SourceNone  = ""
	SourceFile  = "file"
	SourceBlock = "block"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete gleam configuration.
type Config struct {
	// Provider selects the chat transport: "openrouter" or "siliconflow"
	Provider string `toml:"provider" json:"provider" yaml:"provider"`

	// Model is the currently selected model ID
	Model string `toml:"model" json:"model" yaml:"model"`

	EnableContext   bool `toml:"enable_context" json:"enable_context" yaml:"enable_context"`
	MaxHistoryCount int  `toml:"max_history_count" json:"max_history_count" yaml:"max_history_count"`

	// RequestsPerMinute paces transport calls (0 = unlimited)
	RequestsPerMinute int  `toml:"requests_per_minute" json:"requests_per_minute" yaml:"requests_per_minute"`
	Debug             bool `toml:"debug" json:"debug" yaml:"debug"`

	OpenRouter  ProviderConfig `toml:"openrouter" json:"openrouter" yaml:"openrouter"`
	SiliconFlow ProviderConfig `toml:"siliconflow" json:"siliconflow" yaml:"siliconflow"`

	// DefaultParameters apply to every model; ModelParameters override them
	// per model ID.
	DefaultParameters map[string]any            `toml:"default_parameters" json:"default_parameters,omitempty" yaml:"default_parameters,omitempty"`
	ModelParameters   map[string]map[string]any `toml:"model_parameters" json:"model_parameters,omitempty" yaml:"model_parameters,omitempty"`

	History HistoryConfig `toml:"history" json:"history" yaml:"history"`
	Context ContextConfig `toml:"context" json:"context" yaml:"context"`
}

// ProviderConfig holds credentials and endpoint for one provider.
type ProviderConfig struct {
	APIKey  string `toml:"api_key" json:"api_key" yaml:"api_key"`
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`
}

// HistoryConfig selects the history backend.
type HistoryConfig struct {
	// Backend is "file" (JSON file per entry) or "sqlite"
	Backend string `toml:"backend" json:"backend" yaml:"backend"`
	// Path is a directory for "file" and a database file for "sqlite".
	// Empty means ~/.gleam/history or ~/.gleam/history.db.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// ContextConfig describes where the context document comes from.
type ContextConfig struct {
	// Source is "", "file" or "block"
	Source       string `toml:"source" json:"source" yaml:"source"`
	DocumentPath string `toml:"document_path" json:"document_path" yaml:"document_path"`
	HostURL      string `toml:"host_url" json:"host_url" yaml:"host_url"`
	HostToken    string `toml:"host_token" json:"host_token" yaml:"host_token"`
	BlockID      string `toml:"block_id" json:"block_id" yaml:"block_id"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:        ProviderOpenRouter,
		MaxHistoryCount: model.DefaultMaxHistory,
		History: HistoryConfig{
			Backend: BackendFile,
		},
	}
}

// SetDefaults fills empty fields and clamps out-of-range values.
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenRouter
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.MaxHistoryCount = model.ClampMaxHistory(c.MaxHistoryCount)
	if c.History.Backend == "" {
		c.History.Backend = BackendFile
	}
	c.History.Backend = strings.ToLower(c.History.Backend)
	c.Context.Source = strings.ToLower(strings.TrimSpace(c.Context.Source))
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// ActiveProvider returns the settings of the selected provider.
func (c *Config) ActiveProvider() ProviderConfig {
	if c.Provider == ProviderSiliconFlow {
		return c.SiliconFlow
	}
	return c.OpenRouter
}

// HistoryPath returns the configured history location or the backend's
// default under ~/.gleam.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.History.Backend == BackendSQLite {
		return filepath.Join(dir, "history.db"), nil
	}
	return filepath.Join(dir, "history"), nil
}

// Settings converts the config into what the conversation controller reads
// for each request.
func (c *Config) Settings() chat.Settings {
	perModel := make(map[string]model.Parameters, len(c.ModelParameters))
	for id, p := range c.ModelParameters {
		perModel[id] = model.Parameters(maps.Clone(p))
	}
	return chat.Settings{
		Model:             c.Model,
		APIKey:            c.ActiveProvider().APIKey,
		ContextEnabled:    c.EnableContext,
		DefaultParameters: model.Parameters(maps.Clone(c.DefaultParameters)),
		ModelParameters:   perModel,
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.DefaultParameters = maps.Clone(c.DefaultParameters)
	if c.ModelParameters != nil {
		out.ModelParameters = make(map[string]map[string]any, len(c.ModelParameters))
		for id, p := range c.ModelParameters {
			out.ModelParameters[id] = maps.Clone(p)
		}
	}
	return &out
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the gleam configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".gleam"), nil
}

// DefaultPath returns the path to the default TOML config file.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config at path, or the default path when path is empty.
// A missing file yields the defaults. Environment overrides are applied
// last, then defaults are filled and the result validated.
func Load(path string) (*Config, error) {
	return load(path, os.Environ())
}

func load(path string, environ []string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if err := decodeFile(cfg, path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := cfg.applyEnv(environ); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// decodeFile decodes path into cfg, choosing the format by extension.
// TOML is the default.
func decodeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML file %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
		}
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path in the format its extension names. Files are
// written atomically with 0600 permissions since they hold API keys.
func Save(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = encodeTOML(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func encodeTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# gleam configuration file\n")
	buf.WriteString("# Generated by gleam - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
