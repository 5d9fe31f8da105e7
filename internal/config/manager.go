// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/gleam/internal/chat"
)

// reloadDebounce absorbs the burst of events an editor save produces.
const reloadDebounce = 200 * time.Millisecond

// Manager holds the live configuration and reloads it when the file
// changes. It implements chat.SettingsProvider.
type Manager struct {
	path    string
	environ []string
	logger  *slog.Logger

	mu        sync.RWMutex
	cfg       *Config
	overrides []func(*Config)
	listeners []func(*Config)
}

// NewManager loads the config at path (or the default path) and returns a
// manager for it.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	return newManager(path, os.Environ(), logger)
}

func newManager(path string, environ []string, logger *slog.Logger) (*Manager, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := &Manager{
		path:    path,
		environ: environ,
		logger:  logger.With("component", "config"),
	}
	cfg, err := load(path, m.environ)
	if err != nil {
		return nil, err
	}
	m.cfg = cfg
	return m, nil
}

// Path returns the config file path.
func (m *Manager) Path() string {
	return m.path
}

// Current returns a copy of the live configuration.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Clone()
}

// Settings implements chat.SettingsProvider.
func (m *Manager) Settings() chat.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Settings()
}

// OnChange registers fn to run after every successful reload or update.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Override applies fn on top of the file and environment now and after
// every reload. Command-line flags use it; overrides are never saved.
func (m *Manager) Override(fn func(*Config)) error {
	m.mu.Lock()
	m.overrides = append(m.overrides, fn)
	m.mu.Unlock()
	return m.Reload()
}

// Reload re-reads the config file. On error the previous config is kept.
func (m *Manager) Reload() error {
	cfg, err := load(m.path, m.environ)
	if err != nil {
		return err
	}

	m.mu.RLock()
	overrides := append([]func(*Config){}, m.overrides...)
	m.mu.RUnlock()
	if len(overrides) > 0 {
		for _, fn := range overrides {
			fn(cfg)
		}
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	m.replace(cfg)
	m.logger.Debug("config loaded", "path", m.path)
	return nil
}

// Update applies fn to the config file's contents, saves the file and
// reloads. Environment values are not written back. Overrides are dropped
// since the update supersedes them.
func (m *Manager) Update(fn func(*Config)) error {
	cfg := Default()
	if err := decodeFile(cfg, m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	fn(cfg)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := Save(cfg, m.path); err != nil {
		return err
	}

	m.mu.Lock()
	m.overrides = nil
	m.mu.Unlock()
	return m.Reload()
}

func (m *Manager) replace(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	listeners := append([]func(*Config){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg.Clone())
	}
}

// Watch reloads the config whenever its file changes, until ctx is done.
// The parent directory is watched so atomic rename-over saves are seen.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(m.path)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				if err := m.Reload(); err != nil {
					m.logger.Warn("config reload failed", "path", m.path, "error", err)
					return
				}
				m.logger.Info("config reloaded", "path", m.path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("config watcher error", "error", err)
		}
	}
}
