// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/gleam/internal/cloud"
	"github.com/jeranaias/gleam/internal/config"
	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/siliconflow"
	"github.com/jeranaias/gleam/internal/stream"
)

// providerClient is what both provider transports offer.
type providerClient interface {
	Chat(ctx context.Context, req model.RequestContext, onEvent func(stream.Event)) (model.Result, error)
	ListModels(ctx context.Context, apiKey string) (model.Catalog, error)
}

// clientKey identifies the config values a provider client is built from.
type clientKey struct {
	provider string
	baseURL  string
	rpm      int
}

// Router is a chat.Transport that forwards each call to the provider
// selected in the live configuration. Clients are rebuilt when the
// provider, its base URL or the request rate changes.
type Router struct {
	config     func() *config.Config
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	key    clientKey
	client providerClient
}

// NewRouter returns a Router reading configuration from cfg. httpClient may
// be nil.
func NewRouter(cfg func() *config.Config, httpClient *http.Client, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Chat implements chat.Transport.
func (r *Router) Chat(ctx context.Context, req model.RequestContext, onEvent func(stream.Event)) (model.Result, error) {
	client, _, err := r.current()
	if err != nil {
		return model.Result{}, err
	}
	return client.Chat(ctx, req, onEvent)
}

// ListModels returns the active provider's model catalog.
func (r *Router) ListModels(ctx context.Context) (model.Catalog, error) {
	client, apiKey, err := r.current()
	if err != nil {
		return model.Catalog{}, err
	}
	return client.ListModels(ctx, apiKey)
}

func (r *Router) current() (providerClient, string, error) {
	cfg := r.config()
	pc := cfg.ActiveProvider()
	key := clientKey{provider: cfg.Provider, baseURL: pc.BaseURL, rpm: cfg.RequestsPerMinute}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil && r.key == key {
		return r.client, pc.APIKey, nil
	}

	client, err := r.build(key)
	if err != nil {
		return nil, "", err
	}
	r.key = key
	r.client = client
	r.logger.Debug("provider client ready", "provider", key.provider, "base_url", key.baseURL, "rpm", key.rpm)
	return client, pc.APIKey, nil
}

func (r *Router) build(key clientKey) (providerClient, error) {
	var limiter *rate.Limiter
	if key.rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(key.rpm)), 1)
	}

	switch key.provider {
	case config.ProviderOpenRouter:
		opts := []cloud.Option{
			cloud.WithBaseURL(key.baseURL),
			cloud.WithLimiter(limiter),
			cloud.WithSite("https://github.com/jeranaias/gleam", "gleam"),
			cloud.WithLogger(r.logger),
		}
		if r.httpClient != nil {
			opts = append(opts, cloud.WithHTTPClient(r.httpClient))
		}
		return cloud.NewClient(opts...), nil
	case config.ProviderSiliconFlow:
		opts := []siliconflow.Option{
			siliconflow.WithBaseURL(key.baseURL),
			siliconflow.WithLimiter(limiter),
			siliconflow.WithLogger(r.logger),
		}
		if r.httpClient != nil {
			opts = append(opts, siliconflow.WithHTTPClient(r.httpClient))
		}
		return siliconflow.NewClient(opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", key.provider)
	}
}
