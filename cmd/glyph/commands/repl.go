// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/glyph/cmd/glyph/cli"
	"github.com/bureau-foundation/glyph/glyph"
)

const replPrompt = "glyph> "

type replParams struct {
	connectionParams
	Echo bool `flag:"echo" desc:"print each script before its result when input is not a terminal"`
}

func replCommand(env Environment) *cli.Command {
	var params replParams
	return &cli.Command{
		Name:    "repl",
		Summary: "Evaluate Glyph scripts interactively",
		Description: `Read scripts line by line and evaluate each one on the server. On a
terminal, lines are edited with history; otherwise scripts are read
from stdin until end of input and the exit status is 1 if any of them
failed. "exit" or "quit" ends the session without evaluating.`,
		Usage: "glyph repl [flags]",
		Examples: []cli.Example{
			{
				Description: "Replay a transcript against a spawned server",
				Command:     "glyph repl --spawn --echo < session.tcl",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("repl", &params) },
		Run: func(ctx context.Context, args []string) error {
			if err := noArguments("repl", args); err != nil {
				return err
			}
			return params.run(ctx, env, func(s *session) error {
				if file, ok := env.Stdin.(*os.File); ok && cli.IsTerminal(file) && cli.IsTerminal(env.Stdout) {
					return interactiveREPL(ctx, s.client, file, env.Stdout)
				}
				return scriptedREPL(ctx, s.client, env, params.Echo)
			})
		},
	}
}

// replAction classifies one input line.
func replAction(line string) (script string, quit bool) {
	script = strings.TrimSpace(line)
	switch script {
	case "exit", "quit":
		return "", true
	}
	return script, false
}

// scriptedREPL evaluates each non-empty line of env.Stdin, printing
// results to stdout and failures to stderr.
func scriptedREPL(ctx context.Context, client *glyph.Client, env Environment, echo bool) error {
	styles := cli.NewStyles(env.Stderr)
	scanner := bufio.NewScanner(env.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	failures := 0
	for scanner.Scan() {
		script, quit := replAction(scanner.Text())
		if quit {
			break
		}
		if script == "" || strings.HasPrefix(script, "#") {
			continue
		}
		if echo {
			fmt.Fprintf(env.Stdout, "%s%s\n", replPrompt, cli.HighlightTcl(env.Stdout, script))
		}
		result, err := client.Eval(ctx, script)
		if err != nil {
			if !isRemoteFailure(err) {
				return err
			}
			failures++
			fmt.Fprintln(env.Stderr, styles.Error.Render(err.Error()))
			continue
		}
		if result != "" {
			writeLine(env.Stdout, result)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading scripts: %w", err)
	}
	if failures > 0 {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

// interactiveREPL runs a line-editing session on a terminal.
func interactiveREPL(ctx context.Context, client *glyph.Client, in *os.File, out io.Writer) error {
	state, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(int(in.Fd()), state)

	styles := cli.NewStyles(out)
	terminal := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{in, out}, styles.Prompt.Render(replPrompt))

	fmt.Fprintln(terminal, styles.Faint.Render("connected to "+client.ServerVersion()+"; exit or Ctrl-D to leave"))
	for {
		line, err := terminal.ReadLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(terminal)
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		script, quit := replAction(line)
		if quit {
			return nil
		}
		if script == "" {
			continue
		}
		result, err := client.Eval(ctx, script)
		if err != nil {
			if !isRemoteFailure(err) {
				return err
			}
			fmt.Fprintln(terminal, styles.Error.Render(err.Error()))
			continue
		}
		if result != "" {
			fmt.Fprintln(terminal, result)
		}
	}
}

// isRemoteFailure reports whether err is the server rejecting a script,
// after which the session can continue.
func isRemoteFailure(err error) bool {
	var commandErr *glyph.CommandError
	return errors.As(err, &commandErr) && commandErr.Err == nil
}
