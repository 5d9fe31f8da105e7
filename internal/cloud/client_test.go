// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/stream"
)

const testKey = "sk-or-test-key"

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(append([]Option{WithBaseURL(server.URL)}, opts...)...)
}

func userRequest(streaming bool) model.RequestContext {
	return model.RequestContext{
		Model:    "openai/gpt-4o",
		APIKey:   testKey,
		Messages: []model.Message{*model.NewUserMessage("hi", model.Attachments{})},
		Stream:   streaming,
	}
}

func collect(events *[]stream.Event) func(stream.Event) {
	return func(ev stream.Event) { *events = append(*events, ev) }
}

// =============================================================================
// STREAMING
// =============================================================================

func TestChat_Streaming(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`data: {"choices":[{"delta":{"content":"Hel"}}]}` + "\n",
			": keep-alive\n",
			`data: {"choices":[{"delta":{"content":"lo"}}]}` + "\n",
			`data: {"choices":[{"delta":{"images":[{"type":"image_url","image_url":{"url":"https://img/1.png"}}]}}]}` + "\n",
			"data: [DONE]\n",
			`data: {"choices":[{"delta":{"content":"ignored"}}]}` + "\n",
		} {
			io.WriteString(w, line)
			flusher.Flush()
		}
	})

	var events []stream.Event
	result, err := client.Chat(context.Background(), userRequest(true), collect(&events))
	require.NoError(t, err)

	assert.Equal(t, []stream.Event{
		stream.Delta("Hel"),
		stream.Delta("lo"),
		stream.Image("https://img/1.png"),
		stream.End(),
	}, events)
	assert.Equal(t, "Hello", result.Content)
	assert.Equal(t, []string{"https://img/1.png"}, result.Images)
	assert.True(t, result.Done)
}

func TestChat_StreamingSplitMultibyte(t *testing.T) {
	payload := []byte(`data: {"choices":[{"delta":{"content":"héllo"}}]}` + "\ndata: [DONE]\n")
	split := strings.Index(string(payload), "é") + 1

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/eventstream")
		flusher := w.(http.Flusher)
		w.Write(payload[:split])
		flusher.Flush()
		w.Write(payload[split:])
	})

	result, err := client.Chat(context.Background(), userRequest(true), nil)
	require.NoError(t, err)
	assert.Equal(t, "héllo", result.Content)
}

func TestChat_StreamWithoutDone(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"partial"}}]}`)
	})

	result, err := client.Chat(context.Background(), userRequest(true), nil)
	require.NoError(t, err)
	assert.Equal(t, "partial", result.Content)
	assert.False(t, result.Done)
}

// =============================================================================
// WHOLE BODY
// =============================================================================

func TestChat_JSONBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"whole answer","image_url":{"url":"data:image/png;base64,AA"}}}]}`)
	})

	var events []stream.Event
	result, err := client.Chat(context.Background(), userRequest(false), collect(&events))
	require.NoError(t, err)
	assert.Equal(t, []stream.Event{
		stream.Delta("whole answer"),
		stream.Image("data:image/png;base64,AA"),
		stream.End(),
	}, events)
	assert.Equal(t, "whole answer", result.Content)
	assert.True(t, result.Done)
}

func TestChat_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{not json`)
	})

	_, err := client.Chat(context.Background(), userRequest(false), nil)
	assert.ErrorIs(t, err, stream.ErrMalformedBody)
}

// =============================================================================
// REQUEST SHAPING
// =============================================================================

func TestChat_RequestShape(t *testing.T) {
	var got map[string]any
	var headers http.Header
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}, WithSite("https://example.test", "tester"))

	user := model.NewUserMessage("describe", model.Attachments{
		Images: []string{"https://img/a.png"},
		Audio:  []model.Audio{{Data: "UklGRg==", Format: "wav"}},
	})
	req := model.RequestContext{
		Model:  "google/gemini-2.5-flash-image",
		APIKey: testKey,
		Messages: []model.Message{
			*model.NewSystemMessage("context"),
			*user,
		},
		Stream:     true,
		Parameters: model.Parameters{"temperature": 0.2, "top_p": nil, "model": "spoofed"},
	}
	_, err := client.Chat(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer "+testKey, headers.Get("Authorization"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "https://example.test", headers.Get("HTTP-Referer"))
	assert.Equal(t, "tester", headers.Get("X-Title"))

	assert.Equal(t, "google/gemini-2.5-flash-image", got["model"])
	assert.Equal(t, true, got["stream"])
	assert.Equal(t, 0.2, got["temperature"])
	assert.NotContains(t, got, "top_p")

	messages := got["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "context"}, messages[0])

	parts := messages[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 3)
	assert.Equal(t, map[string]any{"type": "text", "text": "describe"}, parts[0])
	assert.Equal(t, map[string]any{"type": "image_url", "image_url": map[string]any{"url": "https://img/a.png"}}, parts[1])
	assert.Equal(t, map[string]any{"type": "input_audio", "input_audio": map[string]any{"data": "UklGRg==", "format": "wav"}}, parts[2])
}

func TestToWireMessage_ImageOnly(t *testing.T) {
	m := model.NewUserMessage("", model.Attachments{Images: []string{"u"}})
	parts := toWireMessage(*m).Content.([]contentPart)
	require.Len(t, parts, 1)
	assert.Equal(t, "image_url", parts[0].Type)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestChat_NotConfigured(t *testing.T) {
	client := NewClient()
	req := userRequest(true)
	req.APIKey = "  "
	_, err := client.Chat(context.Background(), req, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestChat_ErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error":{"code":401,"message":"No auth credentials found"}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrAuthFailed)
				assert.Contains(t, err.Error(), "No auth credentials found")
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			body:   `nope`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrAuthFailed)
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"slow down"}}`,
			header: map[string]string{"Retry-After": "7"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrRateLimited)
				var rl *RateLimitError
				require.True(t, errors.As(err, &rl))
				assert.Equal(t, 7*time.Second, rl.RetryAfter)
				assert.Equal(t, "slow down", rl.Message)
			},
		},
		{
			name:   "structured error",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":"invalid_model","message":"model not found"}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
				assert.Equal(t, "invalid_model", apiErr.Code)
				assert.Equal(t, "model not found", apiErr.Message)
			},
		},
		{
			name:   "plain text error",
			status: http.StatusBadGateway,
			body:   "upstream down\n",
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, "HTTP 502: upstream down", apiErr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := client.Chat(context.Background(), userRequest(true), nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestChat_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"a"}}]}`+"\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	var events []stream.Event
	_, err := client.Chat(ctx, userRequest(true), func(ev stream.Event) {
		events = append(events, ev)
		cancel()
	})
	assert.Error(t, err)
	assert.Equal(t, []stream.Event{stream.Delta("a")}, events)
}

func TestChat_LimiterHonorsContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}, WithLimiter(limiter))

	_, err := client.Chat(context.Background(), userRequest(false), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Chat(ctx, userRequest(false), nil)
	assert.Error(t, err)
}

func TestIsEventStream(t *testing.T) {
	assert.True(t, isEventStream("text/event-stream"))
	assert.True(t, isEventStream("text/event-stream; charset=utf-8"))
	assert.True(t, isEventStream("text/eventstream"))
	assert.False(t, isEventStream("application/json"))
	assert.False(t, isEventStream(""))
}

// =============================================================================
// MODELS
// =============================================================================

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		io.WriteString(w, `{"data":[
			{"id":"z/text","name":"Text","context_length":128000,
			 "architecture":{"input_modalities":["text"],"output_modalities":["text"]}},
			{"id":"a/image","name":"Painter",
			 "architecture":{"input_modalities":["text","image"],"output_modalities":["image","text"]},
			 "supported_parameters":["temperature"]},
			{"id":""}
		]}`)
	})

	catalog, err := client.ListModels(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/image", "z/text"}, catalog.IDs())
	assert.True(t, catalog.SupportsImageOutput("a/image"))
	assert.False(t, catalog.SupportsImageOutput("z/text"))

	info, ok := catalog.Get("z/text")
	require.True(t, ok)
	assert.Equal(t, "128K", info.ContextString())
}

func TestListModels_Error(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := client.ListModels(context.Background(), testKey)
	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
}
