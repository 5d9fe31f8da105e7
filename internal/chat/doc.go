// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the conversation engine.
//
// A Controller owns one conversation. It validates requests, runs at most
// one transport call at a time, applies decoded stream events to the
// conversation's Store, injects document context once per conversation and
// hands completed conversations to a HistoryStore.
//
// # State Machine
//
//	Idle -> Sending -> Streaming -> Completed -> Idle
//	                            \-> Error -----> Idle
//
// Send and Regenerate are only accepted in Idle. NewConversation returns
// to Idle from any state and cancels the in-flight call.
//
// # Observing
//
// Subscribe registers a callback for state changes, message updates and
// non-fatal warnings. Callbacks run on the goroutine that caused the change,
// in order, and may call the controller's read methods.
package chat
