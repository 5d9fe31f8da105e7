// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/stream"
)

// response scripts one transport call.
type response struct {
	events []stream.Event
	result model.Result
	err    error

	// gate, when set, is waited on after the first event is delivered.
	gate chan struct{}
	// ignoreCtx keeps delivering events after cancellation.
	ignoreCtx bool
}

type fakeTransport struct {
	mu        sync.Mutex
	responses []response
	requests  []model.RequestContext
	started   chan struct{}
}

func newFakeTransport(responses ...response) *fakeTransport {
	return &fakeTransport{responses: responses, started: make(chan struct{}, 16)}
}

func (f *fakeTransport) Chat(ctx context.Context, req model.RequestContext, onEvent func(stream.Event)) (model.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	resp := response{events: []stream.Event{stream.End()}, result: model.Result{Done: true}}
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	events := resp.events
	if resp.gate != nil && len(events) > 0 {
		onEvent(events[0])
		events = events[1:]
		f.signal()
		if resp.ignoreCtx {
			<-resp.gate
		} else {
			select {
			case <-resp.gate:
			case <-ctx.Done():
				return model.Result{}, ctx.Err()
			}
		}
	} else {
		f.signal()
	}

	for _, ev := range events {
		onEvent(ev)
	}
	return resp.result, resp.err
}

func (f *fakeTransport) signal() {
	select {
	case f.started <- struct{}{}:
	default:
	}
}

func (f *fakeTransport) calls() []model.RequestContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.RequestContext(nil), f.requests...)
}

type fakeInjector struct {
	mu       sync.Mutex
	contents []string
	err      error
	count    int
}

func (f *fakeInjector) Content(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	if f.err != nil {
		return "", f.err
	}
	if len(f.contents) == 0 {
		return "", nil
	}
	c := f.contents[0]
	if len(f.contents) > 1 {
		f.contents = f.contents[1:]
	}
	return c, nil
}

func (f *fakeInjector) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []model.HistoryEntry
	err     error
}

func (f *fakeHistory) Save(_ context.Context, entry model.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append([]model.HistoryEntry{entry}, f.entries...)
	return nil
}

func (f *fakeHistory) List(context.Context) ([]model.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.HistoryEntry(nil), f.entries...), nil
}

func (f *fakeHistory) ToggleFavorite(context.Context, string) error {
	return errors.New("not implemented")
}

func (f *fakeHistory) Delete(context.Context, string) error {
	return errors.New("not implemented")
}

func (f *fakeHistory) saved() []model.HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.HistoryEntry(nil), f.entries...)
}

func defaultSettings() StaticSettings {
	return StaticSettings{Model: "test/model", APIKey: "sk-test"}
}

type harness struct {
	ctrl      *Controller
	transport *fakeTransport
	injector  *fakeInjector
	history   *fakeHistory

	mu    sync.Mutex
	notes []Notification
}

func newHarness(t *testing.T, settings SettingsProvider, responses ...response) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(responses...),
		injector:  &fakeInjector{},
		history:   &fakeHistory{},
	}
	ctrl, err := NewController(Options{
		Transport: h.transport,
		Settings:  settings,
		Injector:  h.injector,
		History:   h.history,
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	ctrl.Subscribe(func(n Notification) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.notes = append(h.notes, n)
	})
	return h
}

func (h *harness) states() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []State
	for _, n := range h.notes {
		if n.Kind == NotifyState {
			out = append(out, n.State)
		}
	}
	return out
}

func (h *harness) notifications(kind NotificationKind) []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Notification
	for _, n := range h.notes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type switchableSettings struct {
	mu sync.Mutex
	s  Settings
}

func (s *switchableSettings) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}

func (s *switchableSettings) set(v Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s = v
}
