// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const usage = `Usage: gleam [options]

Options:
  -c, --config <path>     config file (default ~/.gleam/config.toml)
  -m, --model <id>        model to use for this session
  -p, --provider <name>   openrouter or siliconflow
      --debug             verbose logging to stderr
  -h, --help              show this help
  -v, --version           show version

Environment:
  OPENROUTER_API_KEY, SILICONFLOW_API_KEY, GLEAM_MODEL, GLEAM_PROVIDER,
  GLEAM_ENABLE_CONTEXT, GLEAM_MAX_HISTORY, GLEAM_HISTORY_BACKEND, GLEAM_DEBUG
`

// Main runs gleam with argv (without the program name) and returns the
// process exit code.
func Main(argv []string) int {
	return run(argv, os.Stdout, os.Stderr)
}

func run(argv []string, stdout, stderr io.Writer) int {
	args, err := ParseArgs(argv)
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n\n%s", ErrorStyle.Render("Error:"), err, usage)
		return 2
	}
	if args.Help {
		fmt.Fprint(stdout, usage)
		return 0
	}
	if args.Version {
		fmt.Fprintf(stdout, "gleam %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		return 0
	}

	app, err := Setup(args, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		return 1
	}
	defer app.Close()

	if err := app.Run(context.Background()); err != nil {
		fmt.Fprintf(stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}
