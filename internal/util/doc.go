// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across gleam packages.
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - FitWidth: pad or cut a string to a terminal column width
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
package util
