// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/glyph/cmd/glyph/cli"
	"github.com/bureau-foundation/glyph/glyph"
	"github.com/bureau-foundation/glyph/lib/version"
)

type pingParams struct {
	cli.JSONOutput
	connectionParams
}

// pingResult is the JSON form of "glyph ping".
type pingResult struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Alive         bool   `json:"alive"`
	ServerVersion string `json:"server_version,omitempty"`
	Busy          bool   `json:"busy,omitempty"`
	AuthFailed    bool   `json:"auth_failed,omitempty"`
	Error         string `json:"error,omitempty"`
}

func pingCommand(env Environment) *cli.Command {
	var params pingParams
	return &cli.Command{
		Name:    "ping",
		Summary: "Check that a Glyph server is reachable",
		Description: `Connect, authenticate, and send a PING. Prints the server version on
success. Exits 1 when the server cannot be reached, is busy with
another client, or rejects the authentication token.`,
		Usage: "glyph ping [flags]",
		Examples: []cli.Example{
			{
				Description: "Wait for a server in a shell loop",
				Command:     "until glyph ping --attempts 1 >/dev/null; do sleep 1; done",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("ping", &params) },
		Run: func(ctx context.Context, args []string) error {
			if err := noArguments("ping", args); err != nil {
				return err
			}
			s, err := params.dial(ctx, env)
			if err != nil {
				return err
			}
			defer s.Close()

			result := pingResult{Host: s.client.Host(), Port: s.client.Port()}
			if err := s.client.Connect(ctx); err != nil {
				result.Error = err.Error()
			} else if !s.client.Ping(ctx) {
				result.Error = "no reply to PING"
			} else {
				result.Alive = true
				result.ServerVersion = s.client.ServerVersion()
			}
			result.Busy = s.client.IsBusy()
			result.AuthFailed = s.client.AuthFailed()

			if done, err := params.EmitJSON(env.Stdout, result); done {
				if err != nil {
					return err
				}
			} else if result.Alive {
				fmt.Fprintf(env.Stdout, "%s:%d: %s\n", result.Host, result.Port, result.ServerVersion)
			} else {
				fmt.Fprintf(env.Stdout, "%s:%d: %s\n", result.Host, result.Port, result.Error)
			}
			if !result.Alive {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

type versionParams struct {
	cli.JSONOutput
	connectionParams
	Server bool `flag:"server" desc:"also connect and report the server version"`
}

// versionResult is the JSON form of "glyph version".
type versionResult struct {
	Client             string `json:"client"`
	Server             string `json:"server,omitempty"`
	ServerMajor        int    `json:"server_major,omitempty"`
	ServerMinor        int    `json:"server_minor,omitempty"`
	CompatibilityLevel string `json:"compatibility,omitempty"`
}

func versionCommand(env Environment) *cli.Command {
	var params versionParams
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Description: `Print the glyph client version. With --server, also connect and print
the server's Pointwise version and the active compatibility version.`,
		Usage: "glyph version [--server] [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("version", &params) },
		Run: func(ctx context.Context, args []string) error {
			if err := noArguments("version", args); err != nil {
				return err
			}
			result := versionResult{Client: version.Info()}
			if params.Server {
				err := params.run(ctx, env, func(s *session) error {
					result.Server = s.client.ServerVersion()
					if parsed, err := glyph.ParseServerVersion(result.Server); err == nil {
						result.ServerMajor, result.ServerMinor = parsed.Major, parsed.Minor
					}
					compatibility, err := s.client.Control(ctx, "version")
					var commandErr *glyph.CommandError
					switch {
					case err == nil:
						result.CompatibilityLevel = compatibility
					case errors.As(err, &commandErr) && commandErr.Err == nil:
						// Servers before the compatibility threshold reject the query.
						s.logger.Debug("server does not report a compatibility version", "error", err)
					default:
						return err
					}
					return nil
				})
				if err != nil {
					return err
				}
			}

			if done, err := params.EmitJSON(env.Stdout, result); done {
				return err
			}
			fmt.Fprintf(env.Stdout, "glyph %s\n", version.Full())
			if result.Server != "" {
				fmt.Fprintf(env.Stdout, "server: %s\n", result.Server)
			}
			if result.CompatibilityLevel != "" {
				fmt.Fprintf(env.Stdout, "compatibility: %s\n", result.CompatibilityLevel)
			}
			return nil
		},
	}
}
