// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the conversation
// engine, its transports and its history stores.
//
// # Key Types
//
//   - Message: one turn in a conversation, with optional image and audio attachments
//   - Parameters: sampling and tool parameters forwarded to the provider
//   - RequestContext: the resolved request handed to a transport
//   - HistoryEntry: a persisted snapshot of a completed conversation
//   - Catalog: an immutable list of models offered by a provider
//
// # Usage
//
//	msg := model.NewUserMessage("Describe this picture")
//	msg.Images = append(msg.Images, "https://example.com/cat.png")
//
//	params := model.MergeParameters(defaults, perModel["openai/gpt-4o"])
package model
