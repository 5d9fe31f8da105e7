// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/jeranaias/gleam/internal/config"
)

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// linerInput provides input history and line editing.
type linerInput struct {
	line        *liner.State
	historyFile string
}

func newLinerInput(complete func(string) []string) *linerInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(complete)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &linerInput{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (in *linerInput) ReadLine(prompt string) (string, error) {
	input, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		in.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with 0600 permissions and restores the terminal.
func (in *linerInput) Close() error {
	if err := os.MkdirAll(filepath.Dir(in.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			in.line.WriteHistory(f)
			f.Close()
		}
	}
	return in.line.Close()
}

// plainInput reads lines from a pipe or file.
type plainInput struct {
	scanner *bufio.Scanner
}

func newPlainInput(r io.Reader) *plainInput {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &plainInput{scanner: s}
}

func (in *plainInput) ReadLine(string) (string, error) {
	if !in.scanner.Scan() {
		if err := in.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return in.scanner.Text(), nil
}

func (in *plainInput) Close() error { return nil }

// =============================================================================
// REPL LOOP
// =============================================================================

// Run reads and executes input until /quit, end of input or Ctrl+C at the
// prompt. The config file is watched for the duration.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := a.config.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("config watch stopped", "error", err)
		}
	}()

	tty := IsTTY()
	var in lineReader
	if tty {
		in = newLinerInput(a.completer.Lines)
	} else {
		in = newPlainInput(os.Stdin)
	}
	defer in.Close()

	// Ctrl+C outside the prompt cancels the reply in progress.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChan:
				if a.ctrl.Cancel() {
					continue
				}
				if sig == syscall.SIGTERM || !tty {
					cancel()
				}
			}
		}
	}()

	a.printWelcome()
	return a.loop(ctx, in)
}

func (a *App) loop(ctx context.Context, in lineReader) error {
	prompt := PromptStyle.Render("gleam> ")
	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := in.ReadLine(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if a.Execute(ctx, input) {
			return nil
		}
	}
}

func (a *App) printWelcome() {
	cfg := a.config.Current()
	current := cfg.Model
	if current == "" {
		current = "no model selected"
	}
	fmt.Fprintf(a.out, "%s %s\n", TitleStyle.Render("gleam"), DimStyle.Render(fmt.Sprintf("%s via %s", current, cfg.Provider)))
	fmt.Fprintln(a.out, DimStyle.Render("Type /help for commands, /quit to exit."))
}
