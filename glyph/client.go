// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/glyph/lib/clock"
	"github.com/bureau-foundation/glyph/lib/config"
	"github.com/bureau-foundation/glyph/lib/frame"
	"github.com/bureau-foundation/glyph/lib/journal"
	"github.com/bureau-foundation/glyph/lib/netutil"
)

// Journal receives every frame the client sends or receives.
// *journal.Writer implements it.
type Journal interface {
	Record(direction journal.Direction, f frame.Frame) error
}

// Config configures a Client. Zero fields fall back to the environment,
// then Profile, then the lib/config defaults.
type Config struct {
	Host string
	Port int
	Auth string

	// Version is the Glyph compatibility version requested after
	// authentication, such as "18.2". Empty uses the server's own.
	Version string

	// ConnectTimeout bounds each TCP dial attempt.
	ConnectTimeout time.Duration

	// RetryInterval is the pause between failed dial attempts.
	RetryInterval time.Duration

	// ConnectAttempts is how many dials Connect makes before giving up.
	ConnectAttempts int

	// Profile is the lowest-precedence explicit layer, usually a profile
	// loaded from a lib/config file.
	Profile config.Connection

	// LookupEnv replaces os.LookupEnv when resolving settings.
	LookupEnv config.LookupEnv

	Clock   clock.Clock
	Logger  *slog.Logger
	Journal Journal
}

func (cfg Config) explicit() config.Connection {
	return config.Connection{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Auth:            cfg.Auth,
		Version:         cfg.Version,
		ConnectTimeout:  config.Duration(cfg.ConnectTimeout),
		RetryInterval:   config.Duration(cfg.RetryInterval),
		ConnectAttempts: cfg.ConnectAttempts,
	}
}

// Client is a connection to a Glyph server. Its methods are safe for
// concurrent use; requests are serialized because the protocol allows
// only one outstanding request.
type Client struct {
	host           string
	port           int
	auth           string
	version        string
	connectTimeout time.Duration
	retryInterval  time.Duration
	attempts       int

	clock   clock.Clock
	logger  *slog.Logger
	journal Journal

	// callMu serializes request/response exchanges.
	callMu sync.Mutex

	// mu guards the fields below. It is never held across network I/O,
	// so Close and Disconnect can interrupt a blocked request.
	mu            sync.Mutex
	conn          net.Conn
	busy          bool
	authFailed    bool
	serverVersion string
	server        *serverProcess
}

// New resolves cfg and returns a disconnected Client.
func New(cfg Config) (*Client, error) {
	resolved, err := config.Resolve(cfg.explicit(), cfg.LookupEnv, cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("glyph: resolving configuration: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		host:           resolved.Host,
		port:           resolved.Port,
		auth:           resolved.Auth,
		version:        resolved.Version,
		connectTimeout: time.Duration(resolved.ConnectTimeout),
		retryInterval:  time.Duration(resolved.RetryInterval),
		attempts:       resolved.ConnectAttempts,
		clock:          clock.OrReal(cfg.Clock),
		logger:         logger.With("host", resolved.Host, "port", resolved.Port),
		journal:        cfg.Journal,
	}, nil
}

// Host returns the resolved server host.
func (c *Client) Host() string { return c.host }

// Port returns the resolved server port.
func (c *Client) Port() int { return c.port }

// Connect opens a connection and authenticates. Any existing connection
// is dropped first, and the busy and auth-failed flags are cleared.
//
// Connect returns ErrUnreachable when no dial succeeds, ErrServerBusy or
// ErrAuthFailed when the server declines the session (IsBusy and
// AuthFailed report the same), and *CompatibilityError when the
// requested compatibility version is refused by a server that supports
// the request. A nil return means the client is connected and
// ServerVersion is populated.
func (c *Client) Connect(ctx context.Context) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.mu.Lock()
	c.dropConnLocked()
	c.busy = false
	c.authFailed = false
	c.serverVersion = ""
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	reply, err := c.exchange(ctx, frame.Frame{Type: frame.TypeAuth, Payload: c.auth})
	if err != nil {
		c.Disconnect()
		return err
	}
	switch reply.Type {
	case frame.TypeReady:
	case frame.TypeAuthFail:
		c.Disconnect()
		c.mu.Lock()
		c.authFailed = true
		c.mu.Unlock()
		c.logger.Warn("glyph server rejected authentication")
		return ErrAuthFailed
	case frame.TypeBusy:
		c.Disconnect()
		c.mu.Lock()
		c.busy = true
		c.mu.Unlock()
		c.logger.Warn("glyph server is busy")
		return ErrServerBusy
	default:
		c.Disconnect()
		return fmt.Errorf("%w %q to AUTH", ErrProtocol, reply.Type)
	}

	var refusal error
	if c.version != "" {
		if _, err := c.request(ctx, frame.TypeControl, "version="+c.version); err != nil {
			refusal = err
		}
	}

	serverVersion, err := c.request(ctx, frame.TypeEval, "pw::Application getVersion")
	if err != nil {
		c.Disconnect()
		return err
	}

	if refusal != nil {
		parsed, parseErr := ParseServerVersion(serverVersion)
		if parseErr == nil && parsed.Compare(CompatibilityThreshold) >= 0 {
			c.Disconnect()
			return &CompatibilityError{Requested: c.version, Server: serverVersion, Err: refusal}
		}
		c.logger.Debug("server predates compatibility requests, ignoring refusal",
			"requested", c.version, "server_version", serverVersion, "error", refusal)
	}

	c.mu.Lock()
	c.serverVersion = serverVersion
	c.mu.Unlock()
	c.logger.Info("connected to glyph server", "server_version", serverVersion)
	return nil
}

// dial makes up to c.attempts TCP connection attempts, pausing
// c.retryInterval between them.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	attempts := max(c.attempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := netutil.Dial(ctx, c.host, c.port, c.connectTimeout)
		if err == nil {
			if tcp, ok := conn.(*net.TCPConn); ok {
				tcp.SetNoDelay(true)
			}
			c.logger.Debug("dialed glyph server", "attempt", attempt)
			return conn, nil
		}
		lastErr = err
		c.logger.Debug("dial failed", "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnreachable, ctx.Err())
		}
		if attempt == attempts {
			break
		}
		select {
		case <-c.clock.After(c.retryInterval):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrUnreachable, ctx.Err())
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnreachable, attempts, lastErr)
}

// Eval sends script as an EVAL request. The server performs Tcl command
// and variable substitution. The reply payload is returned as is.
func (c *Client) Eval(ctx context.Context, script string) (string, error) {
	return c.call(ctx, frame.TypeEval, script)
}

// Command sends tokens as a COMMAND request: a JSON array the server
// runs without substitution. Tokens may be strings, numbers, booleans,
// or nested slices. The reply is usually JSON.
func (c *Client) Command(ctx context.Context, tokens ...any) (string, error) {
	payload, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("glyph: encoding command: %w", err)
	}
	return c.call(ctx, frame.TypeCommand, string(payload))
}

// Execute sends an already encoded JSON command array.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	return c.call(ctx, frame.TypeCommand, command)
}

// Control queries a server setting.
func (c *Client) Control(ctx context.Context, setting string) (string, error) {
	return c.call(ctx, frame.TypeControl, setting)
}

// SetControl changes a server setting and returns its new value.
func (c *Client) SetControl(ctx context.Context, setting, value string) (string, error) {
	return c.call(ctx, frame.TypeControl, setting+"="+value)
}

// Ping reports whether the server answered a PING with OK. It never
// fails; any error yields false.
func (c *Client) Ping(ctx context.Context) bool {
	reply, err := c.call(ctx, frame.TypePing, "")
	return err == nil && reply == "OK"
}

// IsConnected reports whether the client holds a connection and the
// server answers a ping on it.
func (c *Client) IsConnected(ctx context.Context) bool {
	if !c.hasConn() {
		return false
	}
	return c.Ping(ctx)
}

// IsBusy reports whether the last Connect failed with ErrServerBusy.
func (c *Client) IsBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// AuthFailed reports whether the last Connect failed with ErrAuthFailed.
func (c *Client) AuthFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authFailed
}

// ServerVersion returns the server's getVersion reply captured by the
// last successful Connect, or "" before one.
func (c *Client) ServerVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverVersion
}

// Puts prints words, joined by spaces, on the server's standard output.
func (c *Client) Puts(ctx context.Context, words ...string) error {
	_, err := c.Eval(ctx, "puts {"+strings.Join(words, " ")+"}")
	return err
}

// String describes the client without touching the network.
func (c *Client) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	description := "GlyphClient(" + c.host + "@" + strconv.Itoa(c.port) + ") connected=" + strconv.FormatBool(c.conn != nil)
	if c.conn != nil && c.serverVersion != "" {
		description += " Server=" + c.serverVersion
	}
	return description
}

// Disconnect closes the connection, if any. A self-hosted server keeps
// running; Connect can reach it again.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropConnLocked()
}

// Close closes the connection and stops a self-hosted server, waiting
// briefly for its output to drain. Close may be called from any
// goroutine, including while a request is blocked, and more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	c.dropConnLocked()
	server := c.server
	c.server = nil
	c.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.stop()
}

func (c *Client) dropConnLocked() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !netutil.IsConnectionClosed(err) {
		c.logger.Debug("closing glyph connection", "error", err)
	}
	c.conn = nil
}

func (c *Client) hasConn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// call runs one request under callMu.
func (c *Client) call(ctx context.Context, requestType, payload string) (string, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()
	return c.request(ctx, requestType, payload)
}

// request sends one request and returns the OK payload. The caller holds
// callMu.
func (c *Client) request(ctx context.Context, requestType, payload string) (string, error) {
	if !c.hasConn() {
		return "", &CommandError{Command: payload, Err: ErrNotConnected}
	}
	reply, err := c.exchange(ctx, frame.Frame{Type: requestType, Payload: payload})
	if err != nil {
		if errors.Is(err, ErrConnectionClosed) {
			return "", &CommandError{Command: payload, Err: err}
		}
		return "", err
	}
	if reply.Type != frame.TypeOK {
		return "", &CommandError{Command: payload, Message: reply.Payload}
	}
	return reply.Payload, nil
}

// exchange writes request and reads one reply on the current
// connection. Any transport failure drops the connection, since the
// stream position is then unknown. Cancelling ctx closes the socket,
// which unblocks the exchange.
func (c *Client) exchange(ctx context.Context, request frame.Frame) (frame.Frame, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return frame.Frame{}, &TransportError{Op: request.Type, Err: ErrNotConnected}
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	reply, err := c.writeRead(conn, request)
	interrupted := !stop()

	switch {
	case interrupted:
		c.dropConn(conn)
		cause := context.Cause(ctx)
		if err == nil {
			err = net.ErrClosed
		}
		return frame.Frame{}, &TransportError{Op: request.Type, Err: fmt.Errorf("%w: %w", cause, err)}
	case err == nil:
		return reply, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		c.dropConn(conn)
		return frame.Frame{}, &TransportError{Op: request.Type, Err: err}
	case netutil.IsConnectionClosed(err):
		c.dropConn(conn)
		return frame.Frame{}, fmt.Errorf("%w: %w", ErrConnectionClosed, &TransportError{Op: request.Type, Err: err})
	default:
		c.dropConn(conn)
		return frame.Frame{}, &TransportError{Op: request.Type, Err: err}
	}
}

func (c *Client) writeRead(conn net.Conn, request frame.Frame) (frame.Frame, error) {
	c.record(journal.Sent, request)
	if err := frame.Write(conn, request); err != nil {
		return frame.Frame{}, err
	}
	reply, err := frame.Read(conn)
	if err != nil {
		return frame.Frame{}, err
	}
	c.record(journal.Received, reply)
	return reply, nil
}

// dropConn drops conn if it is still the current connection.
func (c *Client) dropConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.dropConnLocked()
	} else {
		conn.Close()
	}
}

func (c *Client) record(direction journal.Direction, f frame.Frame) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(direction, f); err != nil {
		c.logger.Warn("recording frame in journal", "error", err)
	}
}
