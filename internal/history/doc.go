// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history persists completed conversations.
//
// Two backends are provided: FileStore keeps one JSON document per entry
// in a directory, SQLiteStore keeps entries in a SQLite database. Both
// apply the same retention policy after every save, after an entry is
// un-favorited and after the limit is lowered: favorites are always kept,
// the newest non-favorites are kept up to the limit, the rest are removed.
package history
