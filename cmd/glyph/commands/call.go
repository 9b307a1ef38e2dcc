// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/glyph/cmd/glyph/cli"
	"github.com/bureau-foundation/glyph/glyphapi"
	"github.com/bureau-foundation/glyph/lib/tcl"
)

type classesParams struct {
	cli.JSONOutput
	connectionParams
}

func classesCommand(env Environment) *cli.Command {
	var params classesParams
	return &cli.Command{
		Name:    "classes",
		Summary: "List the server's Glyph classes and commands",
		Description: `List every name reported by "pw::Application getAllCommandNames",
sorted. An optional prefix filters the list; the "pw::" namespace may
be left off.`,
		Usage: "glyph classes [flags] [prefix]",
		Examples: []cli.Example{
			{
				Description: "List the grid entity classes",
				Command:     "glyph classes Grid",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("classes", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("classes takes at most one prefix, got %d arguments", len(args))
			}
			var prefix string
			if len(args) == 1 {
				prefix = qualify(args[0])
			}

			return params.run(ctx, env, func(s *session) error {
				api, err := glyphapi.New(ctx, s.client, glyphapi.Config{Logger: s.logger})
				if err != nil {
					return err
				}
				var names []string
				for _, name := range api.Classes() {
					if strings.HasPrefix(name, prefix) {
						names = append(names, name)
					}
				}
				if done, err := params.EmitJSON(env.Stdout, names); done {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(env.Stdout, name)
				}
				return nil
			})
		},
	}
}

type callParams struct {
	cli.JSONOutput
	connectionParams
	Switches []string `flag:"sw" desc:"switch as name=value, or name alone for a flag (repeatable)"`
	Show     bool     `flag:"show" desc:"print the command script on stderr before sending it"`
	DryRun   bool     `flag:"dry-run" desc:"print the command script and exit without connecting"`
}

func callCommand(env Environment) *cli.Command {
	var params callParams
	return &cli.Command{
		Name:    "call",
		Summary: "Run an action on a Glyph class or object",
		Description: `Run an action through the object layer. The target is a class name,
with or without "pw::", or a generated object name such as
"::pw::Connector_1". Arguments are parsed as Tcl lists, so "{0 0 1}"
is passed as a three-element list and "42" as a number. Switches are
given with --sw and are placed before the positional arguments; a
switch name ending in "_" splices its list value into separate words.

Results are printed as Tcl text, or as JSON with --json. Objects in
the result are printed by name.`,
		Usage: "glyph call [flags] <class|object> <action> [argument...]",
		Examples: []cli.Example{
			{
				Description: "Create a connector",
				Command:     "glyph call Connector create",
			},
			{
				Description: "Find all connectors, printing the script sent",
				Command:     "glyph call --show Grid getAll --sw type=pw::Connector",
			},
			{
				Description: "Preview a command without a server",
				Command:     "glyph call --dry-run Application setCAESolver --sw dimension=3 {ANSYS Fluent}",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("call", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("call requires a target and an action")
			}
			target, action := args[0], args[1]
			arguments, err := callArguments(params.Switches, args[2:])
			if err != nil {
				return err
			}

			if params.Show || params.DryRun {
				name := target
				if !glyphapi.IsObjectID(name) {
					name = qualify(name)
				}
				command, err := glyphapi.Build(name, action, arguments...)
				if err != nil {
					return err
				}
				script := command.Script()
				if params.DryRun {
					return writeLine(env.Stdout, cli.HighlightTcl(env.Stdout, script))
				}
				writeLine(env.Stderr, cli.HighlightTcl(env.Stderr, script))
			}

			return params.run(ctx, env, func(s *session) error {
				api, err := glyphapi.New(ctx, s.client, glyphapi.Config{Logger: s.logger})
				if err != nil {
					return err
				}
				var object glyphapi.Object
				if glyphapi.IsObjectID(target) {
					object, err = api.Object(ctx, target)
				} else {
					object, err = api.Resolve(target)
				}
				if err != nil {
					return err
				}

				result, err := object.Invoke(ctx, action, arguments...)
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(env.Stdout, plain(result)); done {
					return err
				}
				if result == nil {
					return nil
				}
				return writeLine(env.Stdout, tcl.Format(result))
			})
		},
	}
}

// callArguments converts --sw values and positional words into action
// arguments.
func callArguments(switches, words []string) ([]any, error) {
	arguments := make([]any, 0, len(switches)+len(words))
	for _, sw := range switches {
		name, text, hasValue := strings.Cut(sw, "=")
		name = strings.TrimPrefix(name, "-")
		if name == "" {
			return nil, fmt.Errorf("--sw %q has no switch name", sw)
		}
		if !hasValue {
			arguments = append(arguments, glyphapi.Sw(name, true))
			continue
		}
		value, err := tcl.ParseList(text, tcl.Scalar)
		if err != nil {
			return nil, fmt.Errorf("--sw %s: %w", name, err)
		}
		arguments = append(arguments, glyphapi.Sw(name, value))
	}
	for _, word := range words {
		value, err := tcl.ParseList(word, tcl.Scalar)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", word, err)
		}
		arguments = append(arguments, value)
	}
	return arguments, nil
}

// qualify adds the "pw::" namespace to a bare class name.
func qualify(name string) string {
	if strings.HasPrefix(name, "pw::") || strings.HasPrefix(name, "::") {
		return name
	}
	return "pw::" + name
}

// plain replaces Objects in an action result with their names so the
// result encodes as JSON.
func plain(value any) any {
	switch typed := value.(type) {
	case glyphapi.Object:
		return typed.ID()
	case []any:
		converted := make([]any, len(typed))
		for i, item := range typed {
			converted[i] = plain(item)
		}
		return converted
	case map[string]any:
		converted := make(map[string]any, len(typed))
		for key, item := range typed {
			converted[key] = plain(item)
		}
		return converted
	default:
		return value
	}
}
