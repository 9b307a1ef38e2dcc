// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the glyph CLI command tree. Every command
// reads and writes through an [Environment] so tests can run the tree
// against a fake server with captured output.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/glyph/cmd/glyph/cli"
	"github.com/bureau-foundation/glyph/lib/config"
)

// Environment is the process context commands run in.
type Environment struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// LookupEnv resolves environment variables. Nil means os.LookupEnv.
	LookupEnv config.LookupEnv
}

// System returns the Environment of the running process.
func System() Environment {
	return Environment{
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		LookupEnv: os.LookupEnv,
	}
}

func (e Environment) lookup(key string) (string, bool) {
	if e.LookupEnv == nil {
		return os.LookupEnv(key)
	}
	return e.LookupEnv(key)
}

// Root builds the complete glyph command tree.
func Root(env Environment) *cli.Command {
	return &cli.Command{
		Name: "glyph",
		Description: `glyph: command-line client for the Pointwise Glyph server.

Evaluates Glyph scripts and commands on a running Pointwise instance,
or on a batch server started for the call with --spawn. Connection
settings come from flags, then the PWI_GLYPH_SERVER_HOST,
PWI_GLYPH_SERVER_PORT, and PWI_GLYPH_SERVER_AUTH environment
variables, then the profile file named by --config or $GLYPH_CONFIG.`,
		HelpOutput: env.Stderr,
		Subcommands: []*cli.Command{
			evalCommand(env),
			commandCommand(env),
			controlCommand(env),
			pingCommand(env),
			classesCommand(env),
			callCommand(env),
			replCommand(env),
			journalCommand(env),
			versionCommand(env),
		},
	}
}

// writeLine writes text followed by a newline unless text already ends
// with one.
func writeLine(w io.Writer, text string) error {
	if text == "" || text[len(text)-1] != '\n' {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}

// noArguments returns a Run-compatible error for commands that take no
// positional arguments.
func noArguments(command string, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%s takes no positional arguments, got %q", command, args[0])
	}
	return nil
}
