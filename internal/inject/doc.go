// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package inject supplies document context for a conversation.
//
// An Injector asks a DocumentProvider for the current document and wraps
// it in a prompt that tells the model to use it as reference material.
// Providers read a local file or ask the host editor's block API.
package inject
