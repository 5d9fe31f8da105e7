// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/stream"
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Options configures a Controller. Transport and Settings are required.
type Options struct {
	Transport Transport
	Settings  SettingsProvider
	Injector  ContextInjector
	History   HistoryStore
	Logger    *slog.Logger
}

// Controller drives one conversation. All methods are safe for concurrent
// use; Send and Regenerate block until their request settles.
type Controller struct {
	transport Transport
	settings  SettingsProvider
	injector  ContextInjector
	history   HistoryStore
	logger    *slog.Logger

	mu    sync.Mutex
	store *Store
	state State

	// gen changes on every reset. A request whose gen no longer matches
	// has been abandoned and must not touch the store.
	gen    uint64
	cancel context.CancelFunc

	subMu  sync.Mutex
	subs   map[int]func(Notification)
	nextID int
}

// call carries one in-flight request.
type call struct {
	ctx      context.Context
	cancel   context.CancelFunc
	gen      uint64
	settings Settings
	msgID    string
}

// NewController creates a controller for an empty conversation.
func NewController(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, errors.New("chat: transport is required")
	}
	if opts.Settings == nil {
		return nil, errors.New("chat: settings provider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		transport: opts.Transport,
		settings:  opts.Settings,
		injector:  opts.Injector,
		history:   opts.History,
		logger:    logger.With("component", "chat"),
		store:     NewStore(),
		subs:      make(map[int]func(Notification)),
	}, nil
}

// =============================================================================
// READ ACCESS
// =============================================================================

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the displayed messages.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Messages()
}

// Loading reports whether a request is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Loading()
}

// StreamingMessageID returns the ID of the message being streamed, if any.
func (c *Controller) StreamingMessageID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.StreamingID()
}

// ContextInjected reports whether this conversation already carries context.
func (c *Controller) ContextInjected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ContextInjected()
}

// Snapshot returns the full conversation as it would be persisted.
func (c *Controller) Snapshot() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Snapshot()
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// AttachImage stages an image for the next Send.
func (c *Controller) AttachImage(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.AddAttachments(model.Attachments{Images: []string{url}})
}

// AttachAudio stages an audio clip for the next Send.
func (c *Controller) AttachAudio(clip model.Audio) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.AddAttachments(model.Attachments{Audio: []model.Audio{clip}})
}

// Attachments returns the staged attachments.
func (c *Controller) Attachments() model.Attachments {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Attachments()
}

// ClearAttachments drops the staged attachments.
func (c *Controller) ClearAttachments() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.ClearAttachments()
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Send appends a user message built from text, the staged attachments and
// extra, then requests an assistant reply. It blocks until the reply has
// completed or failed.
func (c *Controller) Send(ctx context.Context, text string, extra model.Attachments) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	text = strings.TrimSpace(text)
	att := c.store.Attachments().Merge(extra)
	if text == "" && att.IsEmpty() {
		c.mu.Unlock()
		return ErrEmptyRequest
	}
	settings := c.settings.Settings()
	if err := settings.validate(); err != nil {
		c.mu.Unlock()
		return err
	}

	c.store.ClearAttachments()
	user := model.NewUserMessage(text, att)
	c.store.Append(user)
	cl := c.begin(ctx, settings)
	c.mu.Unlock()

	c.dispatch(
		Notification{Kind: NotifyMessage, Message: *user.Clone()},
		Notification{Kind: NotifyState, State: StateSending},
	)
	return c.run(cl)
}

// Regenerate replaces the last assistant message with a new reply.
// messageID must name the last message in the conversation and that
// message must be from the assistant.
func (c *Controller) Regenerate(ctx context.Context, messageID string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	last := c.store.Last()
	if last == nil || last.ID != messageID || last.Role != model.RoleAssistant {
		c.mu.Unlock()
		return ErrInvalidRegenerateTarget
	}
	settings := c.settings.Settings()
	if err := settings.validate(); err != nil {
		c.mu.Unlock()
		return err
	}

	c.store.RemoveLast()
	cl := c.begin(ctx, settings)
	c.mu.Unlock()

	c.dispatch(
		Notification{Kind: NotifyReset, State: StateSending},
		Notification{Kind: NotifyState, State: StateSending},
	)
	return c.run(cl)
}

// NewConversation clears the conversation and returns to Idle from any
// state. An in-flight request is cancelled and its late events dropped.
func (c *Controller) NewConversation() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.store.Reset()
	c.state = StateIdle
	c.mu.Unlock()

	c.logger.Debug("conversation reset")
	c.dispatch(Notification{Kind: NotifyReset, State: StateIdle})
}

// LoadConversation replaces the conversation with a history entry. It is
// only accepted in Idle.
func (c *Controller) LoadConversation(entry model.HistoryEntry) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.gen++
	c.store.Load(entry.Messages)
	c.mu.Unlock()

	c.logger.Debug("conversation loaded", "entry", entry.ID, "messages", len(entry.Messages))
	c.dispatch(Notification{Kind: NotifyReset, State: StateIdle})
	return nil
}

// Cancel aborts the in-flight request, if any. The request settles as an
// error and the controller returns to Idle. It reports whether a request
// was cancelled.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// =============================================================================
// REQUEST PIPELINE
// =============================================================================

// begin appends the assistant placeholder and enters Sending. Caller holds mu.
func (c *Controller) begin(parent context.Context, settings Settings) *call {
	placeholder := model.NewAssistantMessage()
	c.store.BeginStreaming(placeholder)
	c.state = StateSending

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	return &call{
		ctx:      ctx,
		cancel:   cancel,
		gen:      c.gen,
		settings: settings,
		msgID:    placeholder.ID,
	}
}

func (c *Controller) run(cl *call) error {
	defer cl.cancel()

	messages, err := c.prepareMessages(cl)
	if err != nil {
		return err
	}

	req := model.RequestContext{
		Model:      cl.settings.Model,
		APIKey:     cl.settings.APIKey,
		Messages:   messages,
		Stream:     true,
		Parameters: cl.settings.Parameters(),
	}
	c.logger.Debug("sending request",
		"model", req.Model,
		"messages", len(req.Messages),
		"parameters", len(req.Parameters))

	var received atomic.Bool
	result, err := c.transport.Chat(cl.ctx, req, func(ev stream.Event) {
		received.Store(true)
		c.applyEvent(cl, ev)
	})
	if err != nil {
		return c.fail(cl, err)
	}
	return c.complete(cl, result, received.Load())
}

// prepareMessages performs context injection, at most once per
// conversation, and returns the transmitted list.
func (c *Controller) prepareMessages(cl *call) ([]model.Message, error) {
	c.mu.Lock()
	wantContext := cl.settings.ContextEnabled && c.injector != nil && !c.store.ContextInjected()
	c.mu.Unlock()

	var content string
	if wantContext {
		content = c.fetchContext(cl.ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cl.gen != c.gen {
		return nil, ErrCancelled
	}
	if content != "" && !c.store.ContextInjected() {
		c.store.SetContext(model.NewSystemMessage(content))
		c.logger.Info("context injected", "chars", len(content))
	}
	return c.store.Transmitted(), nil
}

func (c *Controller) fetchContext(ctx context.Context) string {
	content, err := c.injector.Content(ctx)
	if err != nil {
		c.logger.Warn("context injection failed", "error", err)
		return ""
	}
	return strings.TrimSpace(content)
}

func (c *Controller) applyEvent(cl *call, ev stream.Event) {
	c.mu.Lock()
	if cl.gen != c.gen {
		c.mu.Unlock()
		return
	}
	var notes []Notification
	if c.state == StateSending {
		c.state = StateStreaming
		notes = append(notes, Notification{Kind: NotifyState, State: StateStreaming})
	}
	if msg, changed := c.store.ApplyEvent(ev); changed {
		notes = append(notes, Notification{Kind: NotifyMessage, Message: msg})
	}
	c.mu.Unlock()

	c.dispatch(notes...)
}

func (c *Controller) complete(cl *call, result model.Result, received bool) error {
	c.mu.Lock()
	if cl.gen != c.gen {
		c.mu.Unlock()
		return ErrCancelled
	}
	if !received {
		c.store.ApplyResult(result)
	}
	msg, _ := c.store.FinishStreaming(false)
	c.state = StateCompleted
	c.cancel = nil
	entry := model.NewHistoryEntry(c.store.Snapshot())
	c.mu.Unlock()

	c.logger.Debug("request completed", "message", cl.msgID, "chars", len(msg.Content), "images", len(msg.Images))
	c.dispatch(
		Notification{Kind: NotifyMessage, Message: msg},
		Notification{Kind: NotifyState, State: StateCompleted},
	)

	c.persist(context.WithoutCancel(cl.ctx), entry)

	c.settle(cl)
	return nil
}

func (c *Controller) fail(cl *call, err error) error {
	if cl.ctx.Err() != nil {
		err = ErrCancelled
	}

	c.mu.Lock()
	if cl.gen != c.gen {
		c.mu.Unlock()
		return ErrCancelled
	}
	msg, _ := c.store.FinishStreaming(true)
	c.state = StateError
	c.cancel = nil
	c.mu.Unlock()

	if !errors.Is(err, ErrCancelled) {
		err = &TransportError{Err: err}
	}
	c.logger.Warn("request failed", "model", cl.settings.Model, "error", err)

	c.dispatch(
		Notification{Kind: NotifyMessage, Message: msg},
		Notification{Kind: NotifyState, State: StateError, Err: err},
	)
	c.settle(cl)
	return err
}

// settle returns a finished request to Idle unless the conversation has
// been reset in the meantime.
func (c *Controller) settle(cl *call) {
	c.mu.Lock()
	if cl.gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.mu.Unlock()

	c.dispatch(Notification{Kind: NotifyState, State: StateIdle})
}

// persist saves entry. Failures are reported but never roll back state.
func (c *Controller) persist(ctx context.Context, entry model.HistoryEntry) {
	if c.history == nil {
		return
	}
	if err := c.history.Save(ctx, entry); err != nil {
		c.logger.Warn("failed to save conversation", "entry", entry.ID, "error", err)
		c.dispatch(Notification{
			Kind: NotifyWarning,
			Err:  fmt.Errorf("saving conversation: %w", err),
		})
		return
	}
	c.logger.Debug("conversation saved", "entry", entry.ID, "title", entry.Title)
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn for notifications and returns a function that
// removes it.
func (c *Controller) Subscribe(fn func(Notification)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) dispatch(notes ...Notification) {
	if len(notes) == 0 {
		return
	}
	c.subMu.Lock()
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	fns := make([]func(Notification), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.subMu.Unlock()

	for _, n := range notes {
		for _, fn := range fns {
			fn(n)
		}
	}
}
