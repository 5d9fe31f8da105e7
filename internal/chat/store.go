// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"regexp"
	"slices"

	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/stream"
)

// imageMarker matches inline image references smuggled through text deltas.
var imageMarker = regexp.MustCompile(`\[IMAGE:(.+?)\]`)

// Store holds the state of one conversation: the displayed messages, the
// injected context message, staged attachments and the streaming flags.
//
// Store is not safe for concurrent use. The Controller serializes access.
type Store struct {
	messages        []*model.Message
	contextMessage  *model.Message
	attachments     model.Attachments
	loading         bool
	streamingID     string
	contextInjected bool
}

// NewStore returns an empty conversation.
func NewStore() *Store {
	return &Store{}
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Messages returns a copy of the displayed messages.
func (s *Store) Messages() []model.Message {
	return model.CloneMessages(s.messages)
}

// Len returns the number of displayed messages.
func (s *Store) Len() int {
	return len(s.messages)
}

// Last returns the most recent displayed message, or nil.
func (s *Store) Last() *model.Message {
	if len(s.messages) == 0 {
		return nil
	}
	return s.messages[len(s.messages)-1]
}

// Loading reports whether a request is in flight.
func (s *Store) Loading() bool {
	return s.loading
}

// StreamingID returns the ID of the message receiving stream events.
func (s *Store) StreamingID() string {
	return s.streamingID
}

// ContextInjected reports whether a context message has been attached.
func (s *Store) ContextInjected() bool {
	return s.contextInjected
}

// ContextMessage returns a copy of the injected context message.
func (s *Store) ContextMessage() (model.Message, bool) {
	if s.contextMessage == nil {
		return model.Message{}, false
	}
	return *s.contextMessage.Clone(), true
}

// Transmitted returns the list sent to the transport: the context message
// first when present, then every displayed message except the streaming
// placeholder. Failed replies that produced nothing are left out.
func (s *Store) Transmitted() []model.Message {
	out := make([]model.Message, 0, len(s.messages)+1)
	if s.contextMessage != nil {
		out = append(out, *s.contextMessage.Clone())
	}
	for _, m := range s.messages {
		if m.ID == s.streamingID || (m.Errored && m.Content == "" && !m.HasAttachments()) {
			continue
		}
		out = append(out, *m.Clone())
	}
	return out
}

// Snapshot returns the full conversation for persistence, context message
// first.
func (s *Store) Snapshot() []model.Message {
	out := make([]model.Message, 0, len(s.messages)+1)
	if s.contextMessage != nil {
		out = append(out, *s.contextMessage.Clone())
	}
	return append(out, model.CloneMessages(s.messages)...)
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// Attachments returns the staged attachments.
func (s *Store) Attachments() model.Attachments {
	return model.Attachments{}.Merge(s.attachments)
}

// AddAttachments stages more attachments for the next message.
func (s *Store) AddAttachments(att model.Attachments) {
	s.attachments = s.attachments.Merge(att)
}

// ClearAttachments drops every staged attachment.
func (s *Store) ClearAttachments() {
	s.attachments = model.Attachments{}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Append adds msg to the end of the conversation.
func (s *Store) Append(msg *model.Message) {
	s.messages = append(s.messages, msg)
}

// RemoveLast removes and returns the last displayed message.
func (s *Store) RemoveLast() *model.Message {
	last := s.Last()
	if last == nil {
		return nil
	}
	s.messages = s.messages[:len(s.messages)-1]
	if last.ID == s.streamingID {
		s.streamingID = ""
	}
	return last
}

// BeginStreaming appends placeholder and makes it the streaming target.
func (s *Store) BeginStreaming(placeholder *model.Message) {
	placeholder.IsStreaming = true
	s.messages = append(s.messages, placeholder)
	s.streamingID = placeholder.ID
	s.loading = true
}

// StreamingMessage returns the current streaming target, or nil.
func (s *Store) StreamingMessage() *model.Message {
	if s.streamingID == "" {
		return nil
	}
	if i := s.indexOf(s.streamingID); i >= 0 {
		return s.messages[i]
	}
	return nil
}

// ApplyEvent updates the streaming message with ev. It returns a copy of
// the message and whether anything changed.
func (s *Store) ApplyEvent(ev stream.Event) (model.Message, bool) {
	msg := s.StreamingMessage()
	if msg == nil {
		return model.Message{}, false
	}

	changed := false
	switch ev.Kind {
	case stream.EventDelta:
		if ev.Text != "" {
			msg.Content += ev.Text
			extractImageMarkers(msg)
			changed = true
		}
	case stream.EventImage:
		changed = msg.AddImage(ev.URL)
	}
	return *msg.Clone(), changed
}

// ApplyResult fills the streaming message from a transport result. It is
// used when the transport delivered no events.
func (s *Store) ApplyResult(res model.Result) {
	msg := s.StreamingMessage()
	if msg == nil {
		return
	}
	if msg.Content == "" {
		msg.Content = res.Content
		extractImageMarkers(msg)
	}
	for _, url := range res.Images {
		msg.AddImage(url)
	}
}

// FinishStreaming finalizes the streaming message, marking it errored when
// requested, and clears the streaming and loading flags.
func (s *Store) FinishStreaming(errored bool) (model.Message, bool) {
	msg := s.StreamingMessage()
	s.streamingID = ""
	s.loading = false
	if msg == nil {
		return model.Message{}, false
	}
	msg.IsStreaming = false
	msg.Errored = errored
	return *msg.Clone(), true
}

// SetContext records msg as the conversation's context message. The
// injected flag stays set until Reset.
func (s *Store) SetContext(msg *model.Message) {
	msg.Role = model.RoleSystem
	s.contextMessage = msg
	s.contextInjected = true
}

// Load replaces the conversation with msgs. A leading system message
// becomes the context message and marks context as injected.
func (s *Store) Load(msgs []model.Message) {
	s.Reset()
	for i := range msgs {
		m := msgs[i].Clone()
		m.IsStreaming = false
		if i == 0 && m.Role == model.RoleSystem {
			s.SetContext(m)
			continue
		}
		s.messages = append(s.messages, m)
	}
}

// Reset clears the conversation, staged attachments and all flags.
func (s *Store) Reset() {
	s.messages = nil
	s.contextMessage = nil
	s.attachments = model.Attachments{}
	s.loading = false
	s.streamingID = ""
	s.contextInjected = false
}

// extractImageMarkers moves [IMAGE:url] markers from the content into the
// image list.
func extractImageMarkers(msg *model.Message) {
	matches := imageMarker.FindAllStringSubmatch(msg.Content, -1)
	if len(matches) == 0 {
		return
	}
	for _, m := range matches {
		msg.AddImage(m[1])
	}
	msg.Content = imageMarker.ReplaceAllString(msg.Content, "")
}

// indexOf returns the position of the message with id, or -1.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.messages, func(m *model.Message) bool { return m.ID == id })
}
