// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gleam/internal/model"
)

const sampleTOML = `
provider = "openrouter"
model = "openai/gpt-4o"
enable_context = true
max_history_count = 20

[openrouter]
api_key = "sk-or-file"

[default_parameters]
temperature = 0.7
max_tokens = 1024

[model_parameters."openai/gpt-4o"]
temperature = 0.2

[history]
backend = "sqlite"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "none.toml"), nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenRouter, cfg.Provider)
	assert.Equal(t, model.DefaultMaxHistory, cfg.MaxHistoryCount)
	assert.Equal(t, BackendFile, cfg.History.Backend)
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := load(writeFile(t, "config.toml", sampleTOML), nil)
	require.NoError(t, err)

	assert.Equal(t, "openai/gpt-4o", cfg.Model)
	assert.True(t, cfg.EnableContext)
	assert.Equal(t, 20, cfg.MaxHistoryCount)
	assert.Equal(t, BackendSQLite, cfg.History.Backend)

	s := cfg.Settings()
	assert.Equal(t, "sk-or-file", s.APIKey)
	params := s.Parameters()
	temp, ok := params.Float("temperature")
	require.True(t, ok)
	assert.Equal(t, 0.2, temp)
	maxTokens, ok := params.Int("max_tokens")
	require.True(t, ok)
	assert.Equal(t, 1024, maxTokens)
}

func TestLoad_JSONAndYAML(t *testing.T) {
	jsonPath := writeFile(t, "config.json", `{"provider":"siliconflow","model":"Qwen/Qwen2.5-7B-Instruct","siliconflow":{"api_key":"sf"}}`)
	cfg, err := load(jsonPath, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderSiliconFlow, cfg.Provider)
	assert.Equal(t, "sf", cfg.Settings().APIKey)

	yamlPath := writeFile(t, "config.yaml", "model: m\nmax_history_count: 5000\ncontext:\n  source: file\n  document_path: /tmp/doc.md\n")
	cfg, err = load(yamlPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "m", cfg.Model)
	assert.Equal(t, model.MaxMaxHistory, cfg.MaxHistoryCount)
	assert.Equal(t, SourceFile, cfg.Context.Source)
}

func TestLoad_Malformed(t *testing.T) {
	_, err := load(writeFile(t, "config.toml", "provider = "), nil)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	environ := []string{
		"GLEAM_MODEL=env/model",
		"OPENROUTER_API_KEY=sk-or-env",
		"GLEAM_MAX_HISTORY=7",
		"GLEAM_ENABLE_CONTEXT=false",
		"GLEAM_DEBUG=true",
		"UNRELATED=x",
	}
	cfg, err := load(writeFile(t, "config.toml", sampleTOML), environ)
	require.NoError(t, err)

	assert.Equal(t, "env/model", cfg.Model)
	assert.Equal(t, "sk-or-env", cfg.OpenRouter.APIKey)
	assert.Equal(t, 7, cfg.MaxHistoryCount)
	assert.False(t, cfg.EnableContext)
	assert.True(t, cfg.Debug)
}

func TestLoad_BadEnvValue(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "none.toml"), []string{"GLEAM_MAX_HISTORY=lots"})
	assert.Error(t, err)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Provider = "ollama"
	cfg.RequestsPerMinute = -1
	cfg.OpenRouter.BaseURL = "not a url"
	cfg.DefaultParameters = map[string]any{"warmth": 1}
	cfg.History.Backend = "redis"
	cfg.Context.Source = SourceBlock

	err := cfg.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	fields := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		var ve *ValidationError
		require.True(t, errors.As(e, &ve))
		fields = append(fields, ve.Field)
	}
	assert.Equal(t, []string{
		"provider",
		"requests_per_minute",
		"openrouter.base_url",
		"default_parameters.warmth",
		"history.backend",
		"context.host_url",
	}, fields)
}

func TestValidate_StableOrder(t *testing.T) {
	cfg := Default()
	cfg.OpenRouter.BaseURL = "ftp://a"
	cfg.SiliconFlow.BaseURL = "nope"
	cfg.Context.HostURL = "://"
	cfg.DefaultParameters = map[string]any{"zeta": 1, "alpha": 1, "mu": 1}

	first := cfg.Validate()
	require.Error(t, first)
	for range 20 {
		assert.Equal(t, first.Error(), cfg.Validate().Error())
	}
	assert.Less(t, strings.Index(first.Error(), "openrouter.base_url"), strings.Index(first.Error(), "siliconflow.base_url"))
	assert.Less(t, strings.Index(first.Error(), "default_parameters.alpha"), strings.Index(first.Error(), "default_parameters.zeta"))
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestHistoryPath(t *testing.T) {
	cfg := Default()
	cfg.History.Path = "/data/history"
	p, err := cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, "/data/history", p)
}

// =============================================================================
// SAVE / CLONE
// =============================================================================

func TestSave_RoundTripAllFormats(t *testing.T) {
	for _, name := range []string{"config.toml", "config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Model = "openai/gpt-4o"
			cfg.OpenRouter.APIKey = "sk"
			cfg.DefaultParameters = map[string]any{"temperature": 0.5}

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Save(cfg, path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			loaded, err := load(path, nil)
			require.NoError(t, err)
			assert.Equal(t, "openai/gpt-4o", loaded.Model)
			assert.Equal(t, "sk", loaded.OpenRouter.APIKey)
			temp, ok := model.Parameters(loaded.DefaultParameters).Float("temperature")
			assert.True(t, ok)
			assert.Equal(t, 0.5, temp)
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	cfg.DefaultParameters = map[string]any{"temperature": 0.5}
	cfg.ModelParameters = map[string]map[string]any{"m": {"top_p": 0.9}}

	c := cfg.Clone()
	c.DefaultParameters["temperature"] = 1.0
	c.ModelParameters["m"]["top_p"] = 0.1

	assert.Equal(t, 0.5, cfg.DefaultParameters["temperature"])
	assert.Equal(t, 0.9, cfg.ModelParameters["m"]["top_p"])
}

// =============================================================================
// MANAGER
// =============================================================================

func TestManager_OverrideAndUpdate(t *testing.T) {
	path := writeFile(t, "config.toml", sampleTOML)
	m, err := newManager(path, []string{"OPENROUTER_API_KEY=sk-or-env"}, nil)
	require.NoError(t, err)

	require.NoError(t, m.Override(func(c *Config) { c.Model = "flag/model" }))
	assert.Equal(t, "flag/model", m.Settings().Model)
	assert.Equal(t, "sk-or-env", m.Settings().APIKey)

	var notified []string
	var mu sync.Mutex
	m.OnChange(func(c *Config) {
		mu.Lock()
		notified = append(notified, c.Model)
		mu.Unlock()
	})

	require.NoError(t, m.Update(func(c *Config) { c.Model = "saved/model" }))
	assert.Equal(t, "saved/model", m.Current().Model)

	onDisk, err := load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "saved/model", onDisk.Model)
	assert.Equal(t, "sk-or-file", onDisk.OpenRouter.APIKey, "environment values are not written back")

	mu.Lock()
	assert.Equal(t, []string{"saved/model"}, notified)
	mu.Unlock()
}

func TestManager_UpdateRejectsInvalid(t *testing.T) {
	path := writeFile(t, "config.toml", sampleTOML)
	m, err := newManager(path, nil, nil)
	require.NoError(t, err)

	err = m.Update(func(c *Config) { c.Provider = "nope" })
	assert.Error(t, err)
	assert.Equal(t, ProviderOpenRouter, m.Current().Provider)
}

func TestManager_CurrentIsACopy(t *testing.T) {
	m, err := newManager(writeFile(t, "config.toml", sampleTOML), nil, nil)
	require.NoError(t, err)

	c := m.Current()
	c.Model = "changed"
	assert.Equal(t, "openai/gpt-4o", m.Current().Model)
}

func TestManager_WatchReloads(t *testing.T) {
	path := writeFile(t, "config.toml", sampleTOML)
	m, err := newManager(path, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`model = "reloaded/model"`), 0600))

	assert.Eventually(t, func() bool {
		return m.Settings().Model == "reloaded/model"
	}, 3*time.Second, 20*time.Millisecond)
}
