// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"

	"github.com/jeranaias/gleam/internal/model"
)

// State is the controller's request lifecycle state.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// NotificationKind says what a Notification reports.
type NotificationKind int

const (
	// NotifyState reports a state transition. Err is set for StateError.
	NotifyState NotificationKind = iota
	// NotifyMessage reports a change to one message.
	NotifyMessage
	// NotifyReset reports that the conversation was cleared or replaced.
	NotifyReset
	// NotifyWarning reports a non-fatal problem such as a failed save.
	NotifyWarning
)

// Notification is delivered to subscribers after every observable change.
type Notification struct {
	Kind    NotificationKind
	State   State
	Message model.Message
	Err     error
}
