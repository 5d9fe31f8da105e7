// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(calls *[]string) *Registry {
	record := func(name string) Handler {
		return func(_ context.Context, args []string) error {
			*calls = append(*calls, name+":"+strings.Join(args, "|"))
			return nil
		}
	}

	r := NewRegistry()
	r.Register(&Command{Name: "/help", Aliases: []string{"/h", "/?"}, Description: "Show help", Handler: record("help")})
	r.Register(&Command{
		Name:        "/load",
		Usage:       "/load <n>",
		Description: "Load a conversation",
		Args:        []ArgDef{{Name: "n", Required: true, Type: ArgTypeEntry, Description: "conversation number"}},
		Handler:     record("load"),
	})
	r.Register(&Command{
		Name:        "/context",
		Usage:       "/context [on|off]",
		Description: "Toggle document context",
		Args:        []ArgDef{{Name: "state", Type: ArgTypeEnum, Values: []string{"on", "off"}}},
		Handler:     record("context"),
	})
	r.Register(&Command{Name: "/debug", Hidden: true, Handler: record("debug")})
	return r
}

func TestRegistryGet(t *testing.T) {
	r := testRegistry(new([]string))

	tests := []struct {
		name string
		want string
	}{
		{"/help", "/help"},
		{"help", "/help"},
		{"/HELP", "/help"},
		{"/h", "/help"},
		{"?", "/help"},
		{"/load", "/load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := r.Get(tt.name)
			require.NotNil(t, cmd)
			assert.Equal(t, tt.want, cmd.Name)
		})
	}

	assert.Nil(t, r.Get("/nope"))
}

func TestRegistryAllKeepsOrder(t *testing.T) {
	r := testRegistry(new([]string))

	var names []string
	for _, cmd := range r.All() {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"/help", "/load", "/context", "/debug"}, names)

	r.Register(&Command{Name: "/load", Description: "replaced"})
	assert.Equal(t, "replaced", r.All()[1].Description)
	assert.Len(t, r.All(), 4)
}

func TestRegistryHelp(t *testing.T) {
	help := testRegistry(new([]string)).Help()

	assert.Contains(t, help, "/load <n>")
	assert.Contains(t, help, "Toggle document context")
	assert.NotContains(t, help, "/debug")

	// Descriptions line up in one column.
	lines := strings.Split(strings.TrimRight(help, "\n"), "\n")
	require.Len(t, lines, 3)
	col := strings.Index(lines[0], "Show help")
	assert.Equal(t, col, strings.Index(lines[1], "Load a conversation"))
}

func TestParserParse(t *testing.T) {
	p := NewParser(testRegistry(new([]string)))

	res := p.Parse("hello there")
	assert.False(t, res.IsCommand)

	res = p.Parse("  /load 3  ")
	assert.True(t, res.IsCommand)
	assert.Equal(t, "/load", res.CommandName)
	assert.Equal(t, []string{"3"}, res.Args)
	assert.Equal(t, "3", res.RawArgs)
	require.NotNil(t, res.Command)

	res = p.Parse("/unknown x")
	assert.True(t, res.IsCommand)
	assert.Nil(t, res.Command)
}

func TestParserRun(t *testing.T) {
	var calls []string
	p := NewParser(testRegistry(&calls))
	ctx := context.Background()

	require.NoError(t, p.Run(ctx, "/load 2"))
	require.NoError(t, p.Run(ctx, "/h"))
	require.NoError(t, p.Run(ctx, "/context OFF"))
	assert.Equal(t, []string{"load:2", "help:", "context:OFF"}, calls)

	var unknown *UnknownCommandError
	err := p.Run(ctx, "/frobnicate")
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "/frobnicate", unknown.Name)

	var invalid *ValidationError
	err = p.Run(ctx, "/load")
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "n", invalid.Arg)

	err = p.Run(ctx, "/context maybe")
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "maybe", invalid.Got)
	assert.Contains(t, err.Error(), "on, off")

	assert.Error(t, p.Run(ctx, "not a command"))
	assert.Len(t, calls, 3)
}

func TestParserRunPropagatesHandlerError(t *testing.T) {
	r := NewRegistry()
	r.Register(&Command{Name: "/quit", Handler: func(context.Context, []string) error { return ErrQuit }})

	err := NewParser(r).Run(context.Background(), "/quit")
	assert.True(t, errors.Is(err, ErrQuit))
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"/export 1 out.md", []string{"/export", "1", "out.md"}},
		{`/export 1 "my notes.md"`, []string{"/export", "1", "my notes.md"}},
		{`/export 1 'it''s'`, []string{"/export", "1", "its"}},
		{`/say "quote \" inside"`, []string{"/say", `quote " inside`}},
		{`/say ""`, []string{"/say", ""}},
		{"/model   gpt    x", []string{"/model", "gpt", "x"}},
		{"/image 日本語.png", []string{"/image", "日本語.png"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseArgs(tt.input))
		})
	}
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("/new"))
	assert.True(t, IsCommand("   /new"))
	assert.False(t, IsCommand("new"))
	assert.False(t, IsCommand(""))
}
