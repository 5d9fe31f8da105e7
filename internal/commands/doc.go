// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the chat REPL.
//
// A Registry holds Command definitions with their handlers, the Parser
// splits input into a command and quoted arguments, and the Completer
// offers tab completions for command names and typed arguments.
//
// # Usage
//
//	reg := commands.NewRegistry()
//	reg.Register(&commands.Command{
//	    Name:    "/model",
//	    Usage:   "/model [id]",
//	    Args:    []commands.ArgDef{{Name: "id", Type: commands.ArgTypeModel}},
//	    Handler: selectModel,
//	})
//	err := commands.NewParser(reg).Run(ctx, "/model openai/gpt-4o")
package commands
