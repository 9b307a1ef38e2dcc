// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/glyph/cmd/glyph/cli"
	"github.com/bureau-foundation/glyph/lib/tcl"
)

type evalParams struct {
	cli.JSONOutput
	connectionParams
}

func evalCommand(env Environment) *cli.Command {
	var params evalParams
	return &cli.Command{
		Name:    "eval",
		Summary: "Evaluate a Glyph script",
		Description: `Send a Tcl script to the server in an EVAL request and print the
result. The arguments are joined with spaces; with no arguments the
script is read from stdin.

With --json the result is parsed as a Tcl list and printed as JSON,
with numeric words converted to numbers.`,
		Usage: "glyph eval [flags] [script...]",
		Examples: []cli.Example{
			{
				Description: "Print the Pointwise version",
				Command:     "glyph eval pw::Application getVersion",
			},
			{
				Description: "Get connector names as a JSON array",
				Command:     "glyph eval --json 'lmap c [pw::Grid getAll -type pw::Connector] {$c getName}'",
			},
			{
				Description: "Run a script file",
				Command:     "glyph eval < mesh.glf",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("eval", &params) },
		Run: func(ctx context.Context, args []string) error {
			script := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(env.Stdin)
				if err != nil {
					return fmt.Errorf("reading script from stdin: %w", err)
				}
				script = string(data)
			}
			if strings.TrimSpace(script) == "" {
				return fmt.Errorf("eval requires a script")
			}

			return params.run(ctx, env, func(s *session) error {
				result, err := s.client.Eval(ctx, script)
				if err != nil {
					return err
				}
				return emitTclResult(env.Stdout, &params.JSONOutput, result)
			})
		},
	}
}

// emitTclResult prints a Tcl result as text, or as JSON after parsing it
// as a list when --json is set.
func emitTclResult(w io.Writer, output *cli.JSONOutput, result string) error {
	if !output.OutputJSON {
		if result == "" {
			return nil
		}
		return writeLine(w, result)
	}
	parsed, err := tcl.ParseList(result, tcl.Scalar)
	if err != nil {
		return fmt.Errorf("parsing result as a Tcl list: %w", err)
	}
	_, err = output.EmitJSON(w, parsed)
	return err
}

type commandParams struct {
	connectionParams
}

func commandCommand(env Environment) *cli.Command {
	var params commandParams
	return &cli.Command{
		Name:    "command",
		Summary: "Send a JSON-encoded Glyph command",
		Description: `Send a JSON array of command tokens in a COMMAND request and print
the server's JSON reply unchanged. The first token is the command or
object name; the remaining tokens are its arguments, with nested arrays
passed as Tcl lists.`,
		Usage: "glyph command [flags] <json>",
		Examples: []cli.Example{
			{
				Description: "Create a connector",
				Command:     `glyph command '["pw::Connector","create"]'`,
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("command", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("command takes exactly one JSON argument, got %d", len(args))
			}
			var tokens []json.RawMessage
			if err := json.Unmarshal([]byte(args[0]), &tokens); err != nil {
				return fmt.Errorf("command must be a JSON array: %w", err)
			}
			if len(tokens) == 0 {
				return fmt.Errorf("command must have at least one token")
			}

			return params.run(ctx, env, func(s *session) error {
				result, err := s.client.Execute(ctx, args[0])
				if err != nil {
					return err
				}
				if result == "" {
					return nil
				}
				return writeLine(env.Stdout, result)
			})
		},
	}
}

type controlParams struct {
	connectionParams
}

func controlCommand(env Environment) *cli.Command {
	var params controlParams
	return &cli.Command{
		Name:    "control",
		Summary: "Query or change a server control setting",
		Description: `Send a CONTROL request. With one argument the current value of the
setting is printed; with two the setting is changed and the server's
reply is printed.`,
		Usage: "glyph control [flags] <setting> [value]",
		Examples: []cli.Example{
			{
				Description: "Show the active compatibility version",
				Command:     "glyph control version",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("control", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("control takes a setting and an optional value, got %d arguments", len(args))
			}
			return params.run(ctx, env, func(s *session) error {
				var (
					result string
					err    error
				)
				if len(args) == 2 {
					result, err = s.client.SetControl(ctx, args[0], args[1])
				} else {
					result, err = s.client.Control(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return writeLine(env.Stdout, result)
			})
		},
	}
}
