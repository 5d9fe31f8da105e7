// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved conversations to Markdown or JSON.
//
// Usage:
//
//	exp, err := export.ForPath("chat.md", nil)
//	err = export.ToFile(entry, exp, "chat.md")
package export
