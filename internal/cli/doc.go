// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the gleam interactive chat REPL.
//
// It wires the configuration manager, the provider transports, the history
// backend and the context injector into a chat.Controller, then reads lines
// with liner and prints streamed replies as they arrive.
//
// # Usage
//
//	os.Exit(cli.Main(os.Args[1:]))
//
// # Commands
//
// Plain input is sent to the active model. Lines starting with a slash are
// commands:
//
//	/new                 start a new conversation
//	/regen               regenerate the last reply
//	/history [query]     list saved conversations
//	/load <n>            load conversation n from the last listing
//	/fav <n>             toggle favorite on conversation n
//	/del <n>             delete conversation n
//	/export <n> <file>   export conversation n (.md or .json)
//	/model [id]          show or select the active model
//	/models [filter]     list models offered by the provider
//	/image <url>         attach an image to the next message
//	/context [on|off]    show or toggle document context
//	/help                show help
//	/quit                exit
//
// Ctrl+C cancels a reply in progress; at the prompt it exits.
package cli
