// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package siliconflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/stream"
)

// DefaultBaseURL is the SiliconFlow OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.siliconflow.cn/v1"

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("SiliconFlow API key not configured")

	// ErrAuthFailed indicates the API key was rejected.
	ErrAuthFailed = errors.New("authentication failed")
)

// Client is a SiliconFlow chat transport. The API key arrives with each
// request, so a go-openai client is built per call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter paces requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a SiliconFlow client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "siliconflow")
	return c
}

func (c *Client) api(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient
	return openai.NewClientWithConfig(cfg)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return nil
}

// Chat sends one chat completion request and reports decoded events to
// onEvent in arrival order.
func (c *Client) Chat(ctx context.Context, req model.RequestContext, onEvent func(stream.Event)) (model.Result, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return model.Result{}, ErrNotConfigured
	}
	if onEvent == nil {
		onEvent = func(stream.Event) {}
	}
	if err := c.wait(ctx); err != nil {
		return model.Result{}, err
	}

	creq := buildRequest(req)
	c.logger.Debug("chat request",
		"model", req.Model,
		"messages", len(creq.Messages),
		"stream", req.Stream)

	if req.Stream {
		return c.chatStream(ctx, req.APIKey, creq, onEvent)
	}
	return c.chatOnce(ctx, req.APIKey, creq, onEvent)
}

func (c *Client) chatStream(ctx context.Context, apiKey string, creq openai.ChatCompletionRequest, onEvent func(stream.Event)) (model.Result, error) {
	s, err := c.api(apiKey).CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return model.Result{}, wrapError(err)
	}
	defer s.Close()

	var content strings.Builder
	for {
		resp, err := s.Recv()
		if errors.Is(err, io.EOF) {
			onEvent(stream.End())
			return model.Result{Content: content.String(), Done: true}, nil
		}
		if err != nil {
			return model.Result{Content: content.String()}, wrapError(err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		text := resp.Choices[0].Delta.Content
		content.WriteString(text)
		onEvent(stream.Delta(text))
	}
}

func (c *Client) chatOnce(ctx context.Context, apiKey string, creq openai.ChatCompletionRequest, onEvent func(stream.Event)) (model.Result, error) {
	resp, err := c.api(apiKey).CreateChatCompletion(ctx, creq)
	if err != nil {
		return model.Result{}, wrapError(err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	if text != "" {
		onEvent(stream.Delta(text))
	}
	onEvent(stream.End())
	return model.Result{Content: text, Done: true}, nil
}

// ListModels returns the models available to apiKey.
func (c *Client) ListModels(ctx context.Context, apiKey string) (model.Catalog, error) {
	if strings.TrimSpace(apiKey) == "" {
		return model.Catalog{}, ErrNotConfigured
	}
	if err := c.wait(ctx); err != nil {
		return model.Catalog{}, err
	}
	list, err := c.api(apiKey).ListModels(ctx)
	if err != nil {
		return model.Catalog{}, wrapError(err)
	}

	infos := make([]model.ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		infos = append(infos, model.ModelInfo{ID: m.ID, Name: m.ID})
	}
	c.logger.Debug("listed models", "count", len(infos))
	return model.NewCatalog(infos), nil
}

// wrapError maps authentication failures to ErrAuthFailed.
func wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuthFailed, apiErr.Message)
		}
		return fmt.Errorf("SiliconFlow error (HTTP %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("SiliconFlow request failed: %w", err)
}
