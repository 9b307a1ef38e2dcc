// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command glyph is a command-line client for the Pointwise Glyph server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/glyph/cmd/glyph/commands"
	"github.com/bureau-foundation/glyph/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own failure (like ping) return an
		// error with an ExitCode method; process.Fatal exits with it
		// silently.
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root(commands.System()).Execute(ctx, os.Args[1:])
}
