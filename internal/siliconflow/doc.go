// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package siliconflow implements the chat transport for SiliconFlow's
// OpenAI-compatible API using the go-openai client.
//
// The OpenAI-compatible wire format carries text content only, so image and
// audio attachments are not forwarded. Of the model parameters only the ones
// the client exposes are mapped; the rest are ignored.
package siliconflow
