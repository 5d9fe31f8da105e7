// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// RequestContext is the fully resolved input to one transport call.
// Messages is the transmitted list, which may start with a context message
// that is not shown in the conversation.
type RequestContext struct {
	Model      string
	APIKey     string
	Messages   []Message
	Stream     bool
	Parameters Parameters
}

// Result is what a transport reports once a call has finished.
type Result struct {
	Content string
	Images  []string
	Done    bool
}
