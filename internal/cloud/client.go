// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/stream"
)

const (
	// DefaultBaseURL is the base URL for the OpenRouter API.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultSiteURL and DefaultSiteName identify the app to OpenRouter.
	DefaultSiteURL  = "https://github.com/jeranaias/gleam"
	DefaultSiteName = "gleam"

	// MaxResponseSize is the maximum allowed non-streaming response body size.
	MaxResponseSize = 10 * 1024 * 1024

	readBufferSize = 32 * 1024
)

// Client is an OpenRouter chat transport. It holds no per-conversation
// state, so one client may serve concurrent calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	siteURL    string
	siteName   string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client. Streaming calls are bounded by
// the request context, so the client should not set a short Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter paces requests. Each call waits for one token.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithSite sets the HTTP-Referer and X-Title attribution headers.
func WithSite(url, name string) Option {
	return func(c *Client) {
		c.siteURL = url
		c.siteName = name
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates an OpenRouter client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		siteURL:  DefaultSiteURL,
		siteName: DefaultSiteName,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "openrouter")
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat sends one chat completion request. Every decoded event is passed to
// onEvent in arrival order before Chat returns.
func (c *Client) Chat(ctx context.Context, req model.RequestContext, onEvent func(stream.Event)) (model.Result, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return model.Result{}, ErrNotConfigured
	}
	if onEvent == nil {
		onEvent = func(stream.Event) {}
	}

	body, err := buildRequestBody(req)
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.post(ctx, "/chat/completions", req.APIKey, body)
	if err != nil {
		return model.Result{}, err
	}
	defer resp.Body.Close()

	c.logger.Debug("chat request",
		"model", req.Model,
		"messages", len(req.Messages),
		"stream", req.Stream,
		"status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return model.Result{}, errorFromResponse(resp, errBody)
	}

	acc := &accumulator{onEvent: onEvent}
	if isEventStream(resp.Header.Get("Content-Type")) {
		err = c.readStream(resp.Body, acc)
	} else {
		err = c.readBody(resp.Body, acc)
	}
	result := acc.final()
	if err != nil {
		return result, err
	}

	c.logger.Debug("chat finished",
		"model", req.Model,
		"chars", len(result.Content),
		"images", len(result.Images),
		"done", result.Done)
	return result, nil
}

func (c *Client) post(ctx context.Context, path, apiKey string, body []byte) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
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

// setHeaders sets the required headers for OpenRouter API requests.
func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(apiKey))
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// readStream feeds the body through the SSE decoder until the stream ends.
func (c *Client) readStream(body io.Reader, acc *accumulator) error {
	dec := stream.NewDecoder()
	buf := make([]byte, readBufferSize)
	for !dec.Done() {
		n, err := body.Read(buf)
		if n > 0 {
			acc.addAll(dec.Feed(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
	}
	acc.addAll(dec.Finish())
	return nil
}

// readBody decodes a whole JSON completion.
func (c *Client) readBody(body io.Reader, acc *accumulator) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize+1))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > MaxResponseSize {
		return fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	events, err := stream.DecodeBody(data)
	if err != nil {
		return err
	}
	acc.addAll(events)
	return nil
}

// isEventStream reports whether a content type is an SSE stream. Some
// gateways send the nonstandard "text/eventstream".
func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(contentType)
	}
	return strings.Contains(mediaType, "text/event-stream") ||
		strings.Contains(mediaType, "text/eventstream")
}

// accumulator forwards events and builds the final result.
type accumulator struct {
	onEvent func(stream.Event)
	content strings.Builder
	result  model.Result
}

func (a *accumulator) addAll(events []stream.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case stream.EventDelta:
			a.content.WriteString(ev.Text)
		case stream.EventImage:
			a.result.Images = append(a.result.Images, ev.URL)
		case stream.EventEnd:
			a.result.Done = true
		}
		a.onEvent(ev)
	}
}

func (a *accumulator) final() model.Result {
	r := a.result
	r.Content = a.content.String()
	return r
}
