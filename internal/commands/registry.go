// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ErrQuit is returned by a handler to end the session.
var ErrQuit = errors.New("quit")

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Handler executes a command with its parsed arguments.
type Handler func(ctx context.Context, args []string) error

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/model [id]")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	Handler Handler

	// Hidden commands don't appear in help
	Hidden bool
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values for enum types
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString ArgType = iota // Free-form string
	ArgTypeModel                 // Model ID from the provider catalog
	ArgTypeEntry                 // Position in the last history listing
	ArgTypeFile                  // File path
	ArgTypeEnum                  // One of predefined values
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands in registration order.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
	order    []*Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
}

// Register adds a command to the registry. Registering a name again
// replaces the earlier command.
func (r *Registry) Register(cmd *Command) {
	name := normalize(cmd.Name)
	if old, ok := r.commands[name]; ok {
		for i, c := range r.order {
			if c == old {
				r.order[i] = cmd
			}
		}
	} else {
		r.order = append(r.order, cmd)
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[normalize(alias)] = cmd
	}
}

// Get retrieves a command by name or alias. The leading slash is optional
// and case is ignored.
func (r *Registry) Get(name string) *Command {
	name = normalize(name)
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands in registration order.
func (r *Registry) All() []*Command {
	out := make([]*Command, len(r.order))
	copy(out, r.order)
	return out
}

// Help renders a two-column usage table of the visible commands.
func (r *Registry) Help() string {
	width := 0
	for _, cmd := range r.order {
		if !cmd.Hidden {
			width = max(width, runewidth.StringWidth(usageOf(cmd)))
		}
	}

	var b strings.Builder
	for _, cmd := range r.order {
		if cmd.Hidden {
			continue
		}
		usage := usageOf(cmd)
		fmt.Fprintf(&b, "  %s  %s\n", runewidth.FillRight(usage, width), cmd.Description)
	}
	return b.String()
}

func usageOf(cmd *Command) string {
	if cmd.Usage != "" {
		return cmd.Usage
	}
	return cmd.Name
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return name
}
