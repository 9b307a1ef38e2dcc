// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/glyph/cmd/glyph/cli"
	"github.com/bureau-foundation/glyph/glyph"
	"github.com/bureau-foundation/glyph/lib/clock"
	"github.com/bureau-foundation/glyph/lib/config"
	"github.com/bureau-foundation/glyph/lib/journal"
)

// connectionParams are the flags shared by every command that talks to
// a server.
type connectionParams struct {
	Host        string        `flag:"host" desc:"server host (default $PWI_GLYPH_SERVER_HOST or localhost)"`
	Port        int           `flag:"port,p" desc:"server port (default $PWI_GLYPH_SERVER_PORT or 2807)"`
	Auth        string        `flag:"auth" desc:"authentication token (default $PWI_GLYPH_SERVER_AUTH)"`
	Compat      string        `flag:"compat" desc:"Glyph compatibility version to request, such as 18.2"`
	Timeout     time.Duration `flag:"timeout" desc:"TCP connect timeout per attempt"`
	Attempts    int           `flag:"attempts" desc:"connection attempts before giving up"`
	Config      string        `flag:"config" desc:"connection profile file (default $GLYPH_CONFIG)"`
	Profile     string        `flag:"profile" desc:"profile to use from the profile file (default: its current profile)"`
	Spawn       bool          `flag:"spawn" desc:"start a batch Glyph server for this command"`
	Program     string        `flag:"program" desc:"server program for --spawn (default: pointwise -b)"`
	ProgramArgs []string      `flag:"program-arg" desc:"argument for --program (repeatable)"`
	Journal     string        `flag:"journal" desc:"record every frame to this file (.zst or .lz4 compresses)"`
	Verbose     bool          `flag:"verbose,v" desc:"log at debug level"`
}

// session is an open client plus the resources the command must release.
type session struct {
	client  *glyph.Client
	logger  *slog.Logger
	journal *journal.Writer
}

// Close disconnects, stops a spawned server, and flushes the journal.
func (s *session) Close() error {
	err := s.client.Close()
	if s.journal != nil {
		if journalErr := s.journal.Close(); journalErr != nil {
			err = errors.Join(err, fmt.Errorf("closing journal: %w", journalErr))
		}
	}
	return err
}

// profile loads the selected connection profile. With no profile file
// configured it returns the zero Connection.
func (p *connectionParams) profile(env Environment) (config.Connection, error) {
	path := p.Config
	if path == "" {
		path, _ = env.lookup(config.EnvConfig)
	}
	if path == "" {
		if p.Profile != "" {
			return config.Connection{}, fmt.Errorf("--profile %q requires --config or $%s", p.Profile, config.EnvConfig)
		}
		return config.Connection{}, nil
	}
	file, err := config.LoadFile(path)
	if err != nil {
		return config.Connection{}, err
	}
	profile, err := file.Profile(p.Profile)
	if err != nil {
		return config.Connection{}, fmt.Errorf("%s: %w", path, err)
	}
	return profile, nil
}

// dial builds a client from the flags without connecting it. With
// --spawn the batch server is started first.
func (p *connectionParams) dial(ctx context.Context, env Environment) (*session, error) {
	logger := cli.NewLogger(env.Stderr, p.Verbose)
	profile, err := p.profile(env)
	if err != nil {
		return nil, err
	}

	cfg := glyph.Config{
		Host:            p.Host,
		Port:            p.Port,
		Auth:            p.Auth,
		Version:         p.Compat,
		ConnectTimeout:  p.Timeout,
		ConnectAttempts: p.Attempts,
		Profile:         profile,
		LookupEnv:       env.lookup,
		Logger:          logger,
	}

	var recorder *journal.Writer
	if p.Journal != "" {
		recorder, err = journal.Create(p.Journal, clock.Real())
		if err != nil {
			return nil, err
		}
		cfg.Journal = recorder
	}

	var client *glyph.Client
	if p.Spawn {
		client, err = glyph.StartServer(ctx, cfg, glyph.ServerOptions{
			Program: p.Program,
			Args:    p.ProgramArgs,
			Output: func(line string) {
				logger.Info("server output", "line", ansi.Strip(line))
			},
		})
	} else {
		client, err = glyph.New(cfg)
	}
	if err != nil {
		if recorder != nil {
			recorder.Close()
		}
		return nil, err
	}
	return &session{client: client, logger: logger, journal: recorder}, nil
}

// open dials and connects.
func (p *connectionParams) open(ctx context.Context, env Environment) (*session, error) {
	s, err := p.dial(ctx, env)
	if err != nil {
		return nil, err
	}
	if err := s.client.Connect(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("connecting to %s:%d: %w", s.client.Host(), s.client.Port(), err)
	}
	return s, nil
}

// run opens a session, calls fn, and closes the session. A close
// failure is reported only when fn succeeded.
func (p *connectionParams) run(ctx context.Context, env Environment, fn func(*session) error) (err error) {
	s, err := p.open(ctx, env)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(s)
}
