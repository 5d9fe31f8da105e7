// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jeranaias/gleam/internal/chat"
	"github.com/jeranaias/gleam/internal/commands"
	"github.com/jeranaias/gleam/internal/config"
	"github.com/jeranaias/gleam/internal/history"
	"github.com/jeranaias/gleam/internal/inject"
	"github.com/jeranaias/gleam/internal/logging"
	"github.com/jeranaias/gleam/internal/model"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// HistoryBackend is the history store surface the REPL uses. Both
// history.FileStore and history.SQLiteStore implement it.
type HistoryBackend interface {
	chat.HistoryStore
	Get(ctx context.Context, id string) (model.HistoryEntry, error)
	Search(ctx context.Context, query string) ([]model.HistoryEntry, error)
	SetMaxCount(ctx context.Context, n int) error
	Close() error
}

// ModelLister returns the active provider's catalog.
type ModelLister interface {
	ListModels(ctx context.Context) (model.Catalog, error)
}

// =============================================================================
// APP
// =============================================================================

// App is one interactive chat session.
type App struct {
	ctrl    *chat.Controller
	config  *config.Manager
	history HistoryBackend
	models  ModelLister
	logger  *slog.Logger

	out         io.Writer
	render      *renderer
	unsubscribe func()

	registry  *commands.Registry
	parser    *commands.Parser
	completer *commands.Completer

	mu      sync.Mutex
	listing []model.HistoryEntry
	catalog model.Catalog
}

// Setup builds an App from the command line: configuration, logging,
// history backend, context injector, transport and controller.
func Setup(args Args, out io.Writer) (*App, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := logging.New(os.Stderr, level)

	mgr, err := config.NewManager(args.ConfigPath, logger)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if args.Model != "" || args.Provider != "" || args.Debug {
		err := mgr.Override(func(c *config.Config) {
			if args.Model != "" {
				c.Model = args.Model
			}
			if args.Provider != "" {
				c.Provider = args.Provider
			}
			if args.Debug {
				c.Debug = true
			}
		})
		if err != nil {
			return nil, fmt.Errorf("applying command line: %w", err)
		}
	}

	cfg := mgr.Current()
	setLevel(level, cfg.Debug)

	store, err := openHistory(cfg, logger)
	if err != nil {
		return nil, err
	}

	router := NewRouter(mgr.Current, nil, logger)
	ctrl, err := chat.NewController(chat.Options{
		Transport: router,
		Settings:  mgr,
		Injector:  inject.New(liveDocument{config: mgr.Current}, logger),
		History:   store,
		Logger:    logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	mgr.OnChange(func(c *config.Config) {
		setLevel(level, c.Debug)
		if err := store.SetMaxCount(context.Background(), c.MaxHistoryCount); err != nil {
			logger.Warn("failed to apply history limit", "max", c.MaxHistoryCount, "error", err)
		}
	})

	return newApp(ctrl, mgr, store, router, out, logger), nil
}

func newApp(ctrl *chat.Controller, mgr *config.Manager, store HistoryBackend, models ModelLister, out io.Writer, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{
		ctrl:    ctrl,
		config:  mgr,
		history: store,
		models:  models,
		logger:  logger.With("component", "cli"),
		out:     out,
		render:  newRenderer(out),
	}
	a.unsubscribe = ctrl.Subscribe(a.render.Handle)

	a.registry = newRegistry(a)
	a.parser = commands.NewParser(a.registry)
	a.completer = commands.NewCompleter(a.registry)
	a.completer.ModelsFn = a.knownModels
	a.completer.EntriesFn = a.listingLen
	return a
}

// Close detaches from the controller and closes the history backend.
func (a *App) Close() error {
	a.ctrl.Cancel()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	return a.history.Close()
}

// Execute handles one line of input. It reports whether the session should
// end.
func (a *App) Execute(ctx context.Context, line string) bool {
	if commands.IsCommand(line) {
		err := a.parser.Run(ctx, line)
		if errors.Is(err, commands.ErrQuit) {
			return true
		}
		if err != nil {
			a.printError(err)
		}
		return false
	}
	a.send(ctx, line)
	return false
}

func (a *App) send(ctx context.Context, text string) {
	err := a.ctrl.Send(ctx, text, model.Attachments{})
	a.reportRequestError(err)
}

// reportRequestError prints validation failures. Transport failures and
// cancellations reach the user through the renderer.
func (a *App) reportRequestError(err error) {
	if err == nil || errors.Is(err, chat.ErrTransport) || errors.Is(err, chat.ErrCancelled) {
		return
	}
	a.printError(err)
}

func (a *App) printError(err error) {
	fmt.Fprintf(a.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
}

func (a *App) knownModels() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.catalog.IDs()
}

func (a *App) listingLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listing)
}

// =============================================================================
// WIRING HELPERS
// =============================================================================

func setLevel(level *slog.LevelVar, debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelWarn)
}

// openHistory opens the configured history backend.
func openHistory(cfg *config.Config, logger *slog.Logger) (HistoryBackend, error) {
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	switch cfg.History.Backend {
	case config.BackendSQLite:
		store, err := history.OpenSQLite(path, cfg.MaxHistoryCount, logger)
		if err != nil {
			return nil, fmt.Errorf("opening history database: %w", err)
		}
		return store, nil
	default:
		store, err := history.NewFileStore(path, cfg.MaxHistoryCount, logger)
		if err != nil {
			return nil, fmt.Errorf("opening history directory: %w", err)
		}
		return store, nil
	}
}

// liveDocument resolves the context document from the current
// configuration on every call, so source changes apply without a restart.
type liveDocument struct {
	config func() *config.Config
	client *http.Client
}

// CurrentDocument implements inject.DocumentProvider.
func (d liveDocument) CurrentDocument(ctx context.Context) (string, error) {
	c := d.config().Context
	switch c.Source {
	case config.SourceFile:
		return inject.FileProvider{Path: c.DocumentPath}.CurrentDocument(ctx)
	case config.SourceBlock:
		blockID := c.BlockID
		return inject.BlockProvider{
			BaseURL: c.HostURL,
			Token:   c.HostToken,
			BlockID: func() string { return blockID },
			Client:  d.client,
		}.CurrentDocument(ctx)
	default:
		return "", nil
	}
}
