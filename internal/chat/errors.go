// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "errors"

// Validation errors. They are returned before any transport call and leave
// the conversation untouched.
var (
	ErrBusy                    = errors.New("a request is already in progress")
	ErrEmptyRequest            = errors.New("empty request")
	ErrNoModel                 = errors.New("no active model selected")
	ErrNoCredential            = errors.New("no credential configured")
	ErrInvalidRegenerateTarget = errors.New("regenerate target not found or not the last assistant message")
)

var (
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport failure")

	// ErrCancelled is returned when a request is cancelled by Cancel or
	// abandoned by NewConversation.
	ErrCancelled = errors.New("request cancelled")
)

// TransportError wraps a failure reported by the transport. Its message
// passes the transport's text through unchanged.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// IsValidation reports whether err is one of the validation errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyRequest) ||
		errors.Is(err, ErrNoModel) ||
		errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrInvalidRegenerateTarget) ||
		errors.Is(err, ErrBusy)
}
