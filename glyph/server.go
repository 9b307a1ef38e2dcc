// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyph

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/glyph/lib/clock"
	"github.com/bureau-foundation/glyph/lib/config"
	"github.com/bureau-foundation/glyph/lib/netutil"
)

// ServerOptions configures a self-hosted batch server. Zero fields fall
// back to the Server section of Config.Profile, then to defaults.
type ServerOptions struct {
	// Program is the server executable. Empty runs "pointwise -b", or
	// "tclsh" on Windows, found on PATH.
	Program string

	// Args are passed to Program. Ignored when Program is empty.
	Args []string

	// MinimumVersion is the PWI_Glyph package version to require.
	MinimumVersion string

	// StartupTimeout bounds the wait for the server's version line.
	StartupTimeout time.Duration

	// ProcessingTimeout is passed to processServerMessages: the server
	// exits after this long without a client.
	ProcessingTimeout time.Duration

	// Output receives each line the server prints, from a background
	// goroutine. It must be safe to call concurrently with requests.
	Output func(line string)
}

const (
	// terminateGrace is how long a terminated server gets to exit before
	// it is killed.
	terminateGrace = 5 * time.Second

	// readerJoinTimeout bounds the wait for the output reader at close.
	readerJoinTimeout = 500 * time.Millisecond
)

var licenseFailurePattern = regexp.MustCompile(`(?i)licen[cs]e`)

// StartServer launches a batch Glyph server on a free loopback port and
// returns a disconnected Client bound to it. cfg.Host and cfg.Port are
// ignored. Closing the client stops the server.
//
// The server must print its version as its first line of output. If the
// line does not contain one, StartServer stops the process and returns a
// *StartupError, or a *LicenseError when the line mentions a license.
func StartServer(ctx context.Context, cfg Config, options ServerOptions) (*Client, error) {
	settings := config.Merge(config.Connection{Server: config.Server{
		Program:           options.Program,
		Args:              options.Args,
		MinimumVersion:    options.MinimumVersion,
		StartupTimeout:    config.Duration(options.StartupTimeout),
		ProcessingTimeout: config.Duration(options.ProcessingTimeout),
	}}, cfg.Profile, config.Default()).Server

	program, args := settings.Program, settings.Args
	if program == "" {
		program, args = defaultServerProgram()
	}
	path, err := exec.LookPath(program)
	if err != nil {
		return nil, &StartupError{Program: program, Reason: "program not found", Err: err}
	}

	port, err := netutil.FreePort()
	if err != nil {
		return nil, &StartupError{Program: path, Reason: "no free port", Err: err}
	}

	cfg.Host = "127.0.0.1"
	cfg.Port = port
	client, err := New(cfg)
	if err != nil {
		return nil, err
	}

	output := options.Output
	if output == nil {
		output = func(string) {}
	}
	server, err := launchServer(ctx, path, args, bootstrapScript(settings, port), output, client.clock, client.logger)
	if err != nil {
		return nil, err
	}

	firstLine, err := server.awaitFirstLine(ctx, time.Duration(settings.StartupTimeout))
	if err == nil {
		if _, parseErr := ParseServerVersion(firstLine); parseErr != nil {
			startup := &StartupError{Program: path, Output: firstLine, Reason: "no server version in output", Err: parseErr}
			if licenseFailurePattern.MatchString(firstLine) {
				err = &LicenseError{Startup: startup}
			} else {
				err = startup
			}
		}
	}
	if err != nil {
		if stopErr := server.stop(); stopErr != nil {
			client.logger.Debug("stopping failed server", "error", stopErr)
		}
		return nil, err
	}

	client.mu.Lock()
	client.server = server
	client.mu.Unlock()
	client.logger.Info("glyph server started", "program", path, "pid", server.cmd.Process.Pid, "version_line", firstLine)
	return client, nil
}

func defaultServerProgram() (string, []string) {
	if runtime.GOOS == "windows" {
		return "tclsh", nil
	}
	return "pointwise", []string{"-b"}
}

// bootstrapScript is written to the server's standard input: load the
// Glyph package, listen on port, announce the version, serve.
func bootstrapScript(settings config.Server, port int) string {
	require := "package require PWI_Glyph"
	if settings.MinimumVersion != "" {
		require += " " + settings.MinimumVersion
	}
	timeout := max(int(time.Duration(settings.ProcessingTimeout)/time.Second), 1)
	return strings.Join([]string{
		require,
		fmt.Sprintf("pw::Script setServerPort %d", port),
		`puts "Server: [pw::Application getVersion]"`,
		fmt.Sprintf("pw::Script processServerMessages -timeout %d", timeout),
	}, "\n") + "\n"
}

// serverProcess is a running batch server and the goroutines that
// watch it.
type serverProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	output *os.File
	clock  clock.Clock
	logger *slog.Logger

	firstLine chan string
	exited    chan struct{}
	readerEnd chan struct{}

	// detached stops the reader from calling output once stop has
	// given up waiting for it.
	detached atomic.Bool
	stopped  atomic.Bool
}

func launchServer(ctx context.Context, path string, args []string, script string, output func(string), clk clock.Clock, logger *slog.Logger) (*serverProcess, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StartupError{Program: path, Reason: "cancelled", Err: err}
	}

	// Standard output and standard error share one pipe so lines keep
	// their relative order.
	outputReader, outputWriter, err := os.Pipe()
	if err != nil {
		return nil, &StartupError{Program: path, Reason: "creating output pipe", Err: err}
	}

	cmd := exec.Command(path, args...)
	cmd.Stdout = outputWriter
	cmd.Stderr = outputWriter
	setProcessGroup(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		outputReader.Close()
		outputWriter.Close()
		return nil, &StartupError{Program: path, Reason: "creating input pipe", Err: err}
	}
	if err := cmd.Start(); err != nil {
		outputReader.Close()
		outputWriter.Close()
		return nil, &StartupError{Program: path, Reason: "starting process", Err: err}
	}
	outputWriter.Close()

	server := &serverProcess{
		cmd:       cmd,
		stdin:     stdin,
		output:    outputReader,
		clock:     clk,
		logger:    logger.With("pid", cmd.Process.Pid),
		firstLine: make(chan string, 1),
		exited:    make(chan struct{}),
		readerEnd: make(chan struct{}),
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			server.logger.Debug("glyph server exited", "error", err)
		}
		close(server.exited)
	}()
	go server.readOutput(output)

	// A server that exits at once (no license, bad install) closes its
	// input early. Its output still explains why, so keep going.
	if _, err := io.WriteString(stdin, script); err != nil {
		server.logger.Debug("writing bootstrap script", "error", err)
	}
	return server, nil
}

// readOutput forwards every output line to output. The first line is
// also delivered on firstLine.
func (s *serverProcess) readOutput(output func(string)) {
	defer close(s.readerEnd)
	defer close(s.firstLine)

	scanner := bufio.NewScanner(s.output)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			s.firstLine <- line
			first = false
		}
		if s.detached.Load() {
			continue
		}
		output(line)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.logger.Debug("reading glyph server output", "error", err)
	}
}

// awaitFirstLine waits for the server's first output line.
func (s *serverProcess) awaitFirstLine(ctx context.Context, timeout time.Duration) (string, error) {
	program := s.cmd.Path
	select {
	case line, ok := <-s.firstLine:
		if !ok {
			return "", &StartupError{Program: program, Reason: "exited without output"}
		}
		return line, nil
	case <-s.clock.After(timeout):
		return "", &StartupError{Program: program, Reason: fmt.Sprintf("no output within %v", timeout)}
	case <-ctx.Done():
		return "", &StartupError{Program: program, Reason: "cancelled", Err: ctx.Err()}
	}
}

// stop terminates the server, waits for it to exit, and joins the
// output reader with a bounded wait. Errors along the way are logged
// rather than returned, except a process that could not be signalled.
func (s *serverProcess) stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	if err := s.stdin.Close(); err != nil {
		s.logger.Debug("closing glyph server input", "error", err)
	}

	var signalErr error
	select {
	case <-s.exited:
	default:
		if err := terminateProcess(s.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Debug("terminating glyph server", "error", err)
		}
		select {
		case <-s.exited:
		case <-s.clock.After(terminateGrace):
			s.logger.Warn("glyph server ignored termination, killing it")
			if err := killProcess(s.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
				signalErr = fmt.Errorf("killing glyph server: %w", err)
			} else {
				<-s.exited
			}
		}
	}

	select {
	case <-s.readerEnd:
	case <-s.clock.After(readerJoinTimeout):
		s.detached.Store(true)
		s.logger.Warn("glyph server output reader did not finish", "timeout", readerJoinTimeout)
	}
	if err := s.output.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.logger.Debug("closing glyph server output", "error", err)
	}
	s.logger.Info("glyph server stopped")
	return signalErr
}
