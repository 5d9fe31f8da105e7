// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits raw arguments into flags and positionals. It serves both
// the command line and slash command arguments.
//
// Supported flag formats:
//
//	--flag value     Long flag with space-separated value
//	--flag=value     Long flag with equals sign
//	-f value         Short flag with space-separated value
//	--flag           Boolean flag (no value)
type ArgParser struct {
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
}

// NewArgParser parses raw. boolNames lists flags that never take a value,
// so a following positional is not swallowed.
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
	}
	isBool := make(map[string]bool, len(boolNames))
	for _, n := range boolNames {
		isBool[n] = true
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			p.positional = append(p.positional, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if k, v, ok := strings.Cut(name, "="); ok {
			if isBool[k] {
				b, err := ParseBoolString(v)
				p.boolFlags[k] = err == nil && b
			} else {
				p.flags[k] = v
			}
			continue
		}

		if !isBool[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.flags[name] = raw[i+1]
			i++
			continue
		}
		p.boolFlags[name] = true
	}
	return p
}

// Flag returns the value of a string flag, or "" when absent.
func (p *ArgParser) Flag(name string) string {
	return p.flags[strings.TrimLeft(name, "-")]
}

// BoolFlag reports whether a boolean flag was given.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.boolFlags[strings.TrimLeft(name, "-")]
}

// HasFlag reports whether the flag exists as a string or boolean flag.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, hasString := p.flags[name]
	_, hasBool := p.boolFlags[name]
	return hasString || hasBool
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments starting at index.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return nil
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// =============================================================================
// COMMAND LINE
// =============================================================================

// Args holds the parsed command line.
type Args struct {
	ConfigPath string
	Model      string
	Provider   string
	Debug      bool
	Help       bool
	Version    bool
}

// knownFlags are the flags ParseArgs accepts, mapped to whether they are
// boolean.
var knownFlags = map[string]bool{
	"config":   false,
	"c":        false,
	"model":    false,
	"m":        false,
	"provider": false,
	"p":        false,
	"debug":    true,
	"help":     true,
	"h":        true,
	"version":  true,
	"v":        true,
}

// ParseArgs parses the gleam command line.
func ParseArgs(raw []string) (Args, error) {
	var boolNames []string
	for name, isBool := range knownFlags {
		if isBool {
			boolNames = append(boolNames, name)
		}
	}
	p := NewArgParser(raw, boolNames...)

	for name := range p.flags {
		if _, ok := knownFlags[name]; !ok {
			return Args{}, fmt.Errorf("unknown flag: --%s", name)
		}
	}
	for name := range p.boolFlags {
		isBool, ok := knownFlags[name]
		if !ok {
			return Args{}, fmt.Errorf("unknown flag: --%s", name)
		}
		if !isBool {
			return Args{}, fmt.Errorf("flag --%s requires a value", name)
		}
	}
	if p.PositionalCount() > 0 {
		return Args{}, fmt.Errorf("unexpected argument: %s", p.Positional(0))
	}

	return Args{
		ConfigPath: firstNonEmpty(p.Flag("config"), p.Flag("c")),
		Model:      firstNonEmpty(p.Flag("model"), p.Flag("m")),
		Provider:   firstNonEmpty(p.Flag("provider"), p.Flag("p")),
		Debug:      p.BoolFlag("debug"),
		Help:       p.BoolFlag("help") || p.BoolFlag("h"),
		Version:    p.BoolFlag("version") || p.BoolFlag("v"),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// =============================================================================
// HELPERS
// =============================================================================

// ParseIndex parses a 1-based list position and checks it against count.
func ParseIndex(s string, count int) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("a conversation number is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("conversation number must be a valid integer: %w", err)
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("conversation number %d out of range (1-%d)", n, count)
	}
	return n - 1, nil
}

// ParseBoolString parses true/false, yes/no, y/n, 1/0 and on/off.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}
