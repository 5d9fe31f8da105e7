// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "Context"
	default:
		return string(r)
	}
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// Audio is an inline audio clip. Data is base64 encoded.
type Audio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// Attachments groups the media a user attaches to a message.
type Attachments struct {
	Images []string `json:"images,omitempty"`
	Audio  []Audio  `json:"audio,omitempty"`
}

// IsEmpty reports whether no media is attached.
func (a Attachments) IsEmpty() bool {
	return len(a.Images) == 0 && len(a.Audio) == 0
}

// Merge returns a followed by b.
func (a Attachments) Merge(b Attachments) Attachments {
	return Attachments{
		Images: append(slices.Clone(a.Images), b.Images...),
		Audio:  append(slices.Clone(a.Audio), b.Audio...),
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Images    []string  `json:"images,omitempty"`
	Audio     []Audio   `json:"audio,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// IsStreaming is set while the message is the conversation's streaming
	// target. It is never persisted.
	IsStreaming bool `json:"-"`

	// Errored marks an assistant message whose request failed. The partial
	// content is kept.
	Errored bool `json:"errored,omitempty"`
}

// NewMessage creates a new message with a time-ordered ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message carrying the given attachments.
func NewUserMessage(content string, att Attachments) *Message {
	msg := NewMessage(RoleUser, content)
	msg.Images = slices.Clone(att.Images)
	msg.Audio = slices.Clone(att.Audio)
	return msg
}

// NewAssistantMessage creates an empty assistant placeholder that is
// already marked as streaming.
func NewAssistantMessage() *Message {
	msg := NewMessage(RoleAssistant, "")
	msg.IsStreaming = true
	return msg
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AddImage appends url unless the message already references it.
// It reports whether the image was added.
func (m *Message) AddImage(url string) bool {
	if url == "" || slices.Contains(m.Images, url) {
		return false
	}
	m.Images = append(m.Images, url)
	return true
}

// HasAttachments reports whether the message carries images or audio.
func (m *Message) HasAttachments() bool {
	return len(m.Images) > 0 || len(m.Audio) > 0
}

// Preview returns a single-line preview of the content, at most maxLen runes.
func (m *Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Images = slices.Clone(m.Images)
	c.Audio = slices.Clone(m.Audio)
	return &c
}

// CloneMessages deep-copies a message list into values.
func CloneMessages(msgs []*Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m.Clone())
	}
	return out
}

// generateID returns a UUIDv7, which sorts in generation order.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
