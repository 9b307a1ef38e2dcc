// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/glyph/lib/clock"
	"github.com/bureau-foundation/glyph/lib/frame"
	"github.com/bureau-foundation/glyph/lib/glyphtest"
	"github.com/bureau-foundation/glyph/lib/journal"
	"github.com/bureau-foundation/glyph/lib/netutil"
	"github.com/bureau-foundation/glyph/lib/testutil"
)

func noEnv(string) (string, bool) { return "", false }

func newTestClient(t *testing.T, server *glyphtest.Server, cfg Config) *Client {
	t.Helper()
	cfg.Host = server.Host()
	cfg.Port = server.Port()
	if cfg.LookupEnv == nil {
		cfg.LookupEnv = noEnv
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func connect(t *testing.T, client *Client) {
	t.Helper()
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestEndToEndEval(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, nil)
	client := newTestClient(t, server, Config{})
	ctx := context.Background()

	connect(t, client)
	got, err := client.Eval(ctx, "pw::Application getVersion")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != "Pointwise V18.4R1" {
		t.Errorf("Eval = %q, want %q", got, "Pointwise V18.4R1")
	}
	if got := client.ServerVersion(); got != "Pointwise V18.4R1" {
		t.Errorf("ServerVersion() = %q, want %q", got, "Pointwise V18.4R1")
	}

	requests := server.Requests()
	if len(requests) == 0 || requests[0] != (frame.Frame{Type: frame.TypeAuth, Payload: ""}) {
		t.Fatalf("first request = %+v, want AUTH with empty token", requests)
	}
	if !client.IsConnected(ctx) {
		t.Error("IsConnected() = false after Connect")
	}
}

func TestConnectBusyThenReady(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, nil)
	var attempts atomic.Int32
	server.SetHandshake(func(string) frame.Frame {
		if attempts.Add(1) == 1 {
			return frame.Frame{Type: frame.TypeBusy}
		}
		return frame.Frame{Type: frame.TypeReady}
	})
	client := newTestClient(t, server, Config{})
	ctx := context.Background()

	err := client.Connect(ctx)
	if !errors.Is(err, ErrServerBusy) {
		t.Fatalf("first Connect = %v, want ErrServerBusy", err)
	}
	if !client.IsBusy() {
		t.Error("IsBusy() = false after BUSY")
	}
	if client.AuthFailed() {
		t.Error("AuthFailed() = true after BUSY")
	}
	if client.IsConnected(ctx) {
		t.Error("IsConnected() = true after BUSY")
	}

	connect(t, client)
	if client.IsBusy() {
		t.Error("IsBusy() = true after successful Connect")
	}
}

func TestConnectAuthFailed(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, nil)
	server.SetHandshake(func(auth string) frame.Frame {
		if auth == "secret" {
			return frame.Frame{Type: frame.TypeReady}
		}
		return frame.Frame{Type: frame.TypeAuthFail}
	})

	wrong := newTestClient(t, server, Config{Auth: "guess"})
	if err := wrong.Connect(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Connect = %v, want ErrAuthFailed", err)
	}
	if !wrong.AuthFailed() || wrong.IsBusy() {
		t.Errorf("AuthFailed() = %v, IsBusy() = %v; want true, false", wrong.AuthFailed(), wrong.IsBusy())
	}

	right := newTestClient(t, server, Config{Auth: "secret"})
	connect(t, right)
	if right.AuthFailed() {
		t.Error("AuthFailed() = true after successful Connect")
	}
}

func TestConnectUnexpectedHandshake(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, nil)
	server.SetHandshake(func(string) frame.Frame { return frame.Frame{Type: "HELLO"} })
	client := newTestClient(t, server, Config{})

	if err := client.Connect(context.Background()); !errors.Is(err, ErrProtocol) {
		t.Fatalf("Connect = %v, want ErrProtocol", err)
	}
	if client.hasConn() {
		t.Error("client kept its connection after a bad handshake")
	}
}

func TestConnectHangupDuringHandshake(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, nil)
	server.SetHandshake(func(string) frame.Frame { return glyphtest.Hangup })
	client := newTestClient(t, server, Config{})

	err := client.Connect(context.Background())
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("Connect = %v, want ErrConnectionClosed", err)
	}
	if client.IsBusy() || client.AuthFailed() {
		t.Error("hangup set busy or auth-failed flag")
	}
}

func TestConnectRetriesThenUnreachable(t *testing.T) {
	t.Parallel()

	port, err := netutil.FreePort()
	if err != nil {
		t.Fatalf("FreePort: %v", err)
	}
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	client, err := New(Config{
		Host:            "127.0.0.1",
		Port:            port,
		ConnectAttempts: 3,
		RetryInterval:   100 * time.Millisecond,
		Clock:           fake,
		LookupEnv:       noEnv,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := make(chan error, 1)
	go func() { result <- client.Connect(context.Background()) }()

	for range 2 {
		fake.WaitForTimers(1)
		fake.Advance(100 * time.Millisecond)
	}

	err = testutil.RequireReceive(t, result, 5*time.Second, "waiting for Connect")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("Connect = %v, want ErrUnreachable", err)
	}
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after final attempt, want 0", fake.PendingCount())
	}
}

func TestConnectCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	port, err := netutil.FreePort()
	if err != nil {
		t.Fatalf("FreePort: %v", err)
	}
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	client, err := New(Config{Host: "127.0.0.1", Port: port, Clock: fake, LookupEnv: noEnv})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- client.Connect(ctx) }()
	fake.WaitForTimers(1)
	cancel()

	err = testutil.RequireReceive(t, result, 5*time.Second, "waiting for Connect")
	if !errors.Is(err, ErrUnreachable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect = %v, want ErrUnreachable wrapping context.Canceled", err)
	}
}

func TestCompatibilityVersion(t *testing.T) {
	t.Parallel()

	refusing := func(serverVersion string) glyphtest.Handler {
		standard := glyphtest.Standard(serverVersion, nil)
		return func(request frame.Frame) frame.Frame {
			if request.Type == frame.TypeControl {
				return glyphtest.Fail("unsupported version")
			}
			return standard(request)
		}
	}

	tests := []struct {
		name          string
		handler       glyphtest.Handler
		wantRefused   bool
		wantConnected bool
	}{
		{"accepted", glyphtest.Standard("Pointwise V18.4R1", nil), false, true},
		{"refused by new server", refusing("Pointwise V18.4R1"), true, false},
		{"refused at threshold", refusing("Pointwise V18.3R2"), true, false},
		{"refused by old server", refusing("Pointwise V18.2R1"), false, true},
		{"refused with unparsable version", refusing("Glyph test server"), false, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			server := glyphtest.NewServer(t, test.handler)
			client := newTestClient(t, server, Config{Version: "17.3"})
			err := client.Connect(context.Background())

			var compatibility *CompatibilityError
			if refused := errors.As(err, &compatibility); refused != test.wantRefused {
				t.Fatalf("Connect = %v, refused %v, want %v", err, refused, test.wantRefused)
			}
			if test.wantRefused {
				if compatibility.Requested != "17.3" {
					t.Errorf("Requested = %q, want 17.3", compatibility.Requested)
				}
				var command *CommandError
				if !errors.As(err, &command) || command.Message != "unsupported version" {
					t.Errorf("Connect error does not carry the server refusal: %v", err)
				}
			} else if err != nil {
				t.Fatalf("Connect: %v", err)
			}
			if got := client.hasConn(); got != test.wantConnected {
				t.Errorf("connected = %v, want %v", got, test.wantConnected)
			}

			controls := server.Payloads(frame.TypeControl)
			if len(controls) != 1 || controls[0] != "version=17.3" {
				t.Errorf("CONTROL payloads = %q, want [version=17.3]", controls)
			}
		})
	}
}

func TestNoCompatibilityRequestWithoutVersion(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, nil)
	client := newTestClient(t, server, Config{})
	connect(t, client)
	if controls := server.Payloads(frame.TypeControl); len(controls) != 0 {
		t.Errorf("CONTROL payloads = %q, want none", controls)
	}
}

func TestRequestPayloads(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, glyphtest.Standard(glyphtest.DefaultVersion, func(request frame.Frame) frame.Frame {
		return glyphtest.OK("result")
	}))
	client := newTestClient(t, server, Config{})
	ctx := context.Background()
	connect(t, client)

	if _, err := client.Command(ctx, "pw::Connector", "create"); err != nil {
		t.Fatalf("Command: %v", err)
	}
	if _, err := client.Command(ctx, "::pw::Connector_1", "setDimension", 10, []any{1.5, "x"}); err != nil {
		t.Fatalf("Command: %v", err)
	}
	if _, err := client.Execute(ctx, `["pw::Display","update"]`); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got, err := client.Control(ctx, "version"); err != nil || got != "" {
		t.Fatalf("Control = %q, %v", got, err)
	}
	if got, err := client.SetControl(ctx, "version", "18.0"); err != nil || got != "18.0" {
		t.Fatalf("SetControl = %q, %v; want 18.0", got, err)
	}
	if err := client.Puts(ctx, "hello", "world"); err != nil {
		t.Fatalf("Puts: %v", err)
	}

	wantCommands := []string{
		`["pw::Connector","create"]`,
		`["::pw::Connector_1","setDimension",10,[1.5,"x"]]`,
		`["pw::Display","update"]`,
	}
	if got := server.Payloads(frame.TypeCommand); fmt.Sprint(got) != fmt.Sprint(wantCommands) {
		t.Errorf("COMMAND payloads = %q, want %q", got, wantCommands)
	}
	if got := server.Payloads(frame.TypeControl); fmt.Sprint(got) != fmt.Sprint([]string{"version", "version=18.0"}) {
		t.Errorf("CONTROL payloads = %q", got)
	}
	evals := server.Payloads(frame.TypeEval)
	if last := evals[len(evals)-1]; last != "puts {hello world}" {
		t.Errorf("Puts sent %q, want %q", last, "puts {hello world}")
	}
}

func TestCommandErrorCarriesCommand(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, glyphtest.Standard(glyphtest.DefaultVersion, func(request frame.Frame) frame.Frame {
		return glyphtest.Fail(`invalid command name "bogus"`)
	}))
	client := newTestClient(t, server, Config{})
	connect(t, client)

	_, err := client.Eval(context.Background(), "bogus 1 2")
	var command *CommandError
	if !errors.As(err, &command) {
		t.Fatalf("Eval = %v, want *CommandError", err)
	}
	if command.Command != "bogus 1 2" || command.Message != `invalid command name "bogus"` {
		t.Errorf("CommandError = %+v", command)
	}
	if command.Err != nil {
		t.Errorf("server-side failure has local cause %v", command.Err)
	}
	if !client.hasConn() {
		t.Error("a failed command dropped the connection")
	}
}

func TestRequestsWhileDisconnected(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, nil)
	client := newTestClient(t, server, Config{})
	ctx := context.Background()

	if _, err := client.Eval(ctx, "puts hi"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Eval before Connect = %v, want ErrNotConnected", err)
	}
	if client.Ping(ctx) {
		t.Error("Ping() = true before Connect")
	}
	if client.IsConnected(ctx) {
		t.Error("IsConnected() = true before Connect")
	}

	connect(t, client)
	client.Disconnect()
	if _, err := client.Command(ctx, "pw::Display", "update"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Command after Disconnect = %v, want ErrNotConnected", err)
	}
	if len(server.Payloads(frame.TypeCommand)) != 0 {
		t.Error("a request reached the server while disconnected")
	}
}

func TestServerClosesConnection(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, glyphtest.Standard(glyphtest.DefaultVersion, func(request frame.Frame) frame.Frame {
		return glyphtest.Hangup
	}))
	client := newTestClient(t, server, Config{})
	ctx := context.Background()
	connect(t, client)

	_, err := client.Eval(ctx, "exit")
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("Eval = %v, want ErrConnectionClosed", err)
	}
	var command *CommandError
	if !errors.As(err, &command) || command.Command != "exit" {
		t.Errorf("error does not name the command: %v", err)
	}
	if client.IsConnected(ctx) {
		t.Error("IsConnected() = true after the server hung up")
	}
	if _, err := client.Eval(ctx, "puts again"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Eval after hangup = %v, want ErrNotConnected", err)
	}

	// Connect can recover.
	connect(t, client)
	if server.Accepted() != 2 {
		t.Errorf("Accepted() = %d, want 2", server.Accepted())
	}
}

// blockingServer answers "block" only after release is closed.
func blockingServer(t *testing.T) (*glyphtest.Server, chan struct{}) {
	release := make(chan struct{})
	server := glyphtest.NewServer(t, glyphtest.Standard(glyphtest.DefaultVersion, func(request frame.Frame) frame.Frame {
		if request.Payload == "block" {
			<-release
		}
		return glyphtest.OK("done")
	}))
	t.Cleanup(func() { close(release) })
	return server, release
}

func TestCancelInterruptsRequest(t *testing.T) {
	t.Parallel()

	server, _ := blockingServer(t)
	client := newTestClient(t, server, Config{})
	connect(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := client.Eval(ctx, "block")
		result <- err
	}()
	waitForPayload(t, server, "block")
	cancel()

	err := testutil.RequireReceive(t, result, 5*time.Second, "waiting for cancelled Eval")
	var transport *TransportError
	if !errors.As(err, &transport) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Eval = %v, want *TransportError wrapping context.Canceled", err)
	}
	if transport.Op != frame.TypeEval {
		t.Errorf("Op = %q, want EVAL", transport.Op)
	}
	if client.hasConn() {
		t.Error("client kept the interrupted connection")
	}
}

func TestCloseInterruptsRequest(t *testing.T) {
	t.Parallel()

	server, _ := blockingServer(t)
	client := newTestClient(t, server, Config{})
	connect(t, client)

	result := make(chan error, 1)
	go func() {
		_, err := client.Eval(context.Background(), "block")
		result <- err
	}()
	waitForPayload(t, server, "block")
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := testutil.RequireReceive(t, result, 5*time.Second, "waiting for interrupted Eval"); err == nil {
		t.Fatal("Eval succeeded after Close")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func waitForPayload(t *testing.T, server *glyphtest.Server, payload string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, received := range server.Payloads(frame.TypeEval) {
			if received == payload {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("server never received %q", payload)
}

func TestEnvironmentResolution(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, nil)
	server.SetHandshake(func(auth string) frame.Frame {
		if auth == "from-env" {
			return frame.Frame{Type: frame.TypeReady}
		}
		return frame.Frame{Type: frame.TypeAuthFail}
	})
	env := map[string]string{
		"PWI_GLYPH_SERVER_PORT": strconv.Itoa(server.Port()),
		"PWI_GLYPH_SERVER_AUTH": "from-env",
		"PWI_GLYPH_SERVER_HOST": server.Host(),
	}
	client, err := New(Config{LookupEnv: func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if client.Port() != server.Port() || client.Host() != server.Host() {
		t.Fatalf("resolved %s:%d, want %s:%d", client.Host(), client.Port(), server.Host(), server.Port())
	}
	connect(t, client)
}

func TestNewRejectsBadEnvironmentPort(t *testing.T) {
	t.Parallel()

	_, err := New(Config{LookupEnv: func(key string) (string, bool) {
		if key == "PWI_GLYPH_SERVER_PORT" {
			return "not-a-port", true
		}
		return "", false
	}})
	if err == nil {
		t.Fatal("New accepted an invalid PWI_GLYPH_SERVER_PORT")
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, nil)
	client := newTestClient(t, server, Config{})
	prefix := fmt.Sprintf("GlyphClient(%s@%d)", server.Host(), server.Port())

	if got, want := client.String(), prefix+" connected=false"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	connect(t, client)
	if got, want := client.String(), prefix+" connected=true Server=Pointwise V18.4R1"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []string
}

func (r *recordingJournal) Record(direction journal.Direction, f frame.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, fmt.Sprintf("%s %s %s", direction, f.Type, f.Payload))
	return nil
}

func TestJournalRecordsFrames(t *testing.T) {
	t.Parallel()

	server := glyphtest.NewServer(t, nil)
	recorder := &recordingJournal{}
	client := newTestClient(t, server, Config{Auth: "token", Journal: recorder})
	connect(t, client)

	want := []string{
		"sent AUTH token",
		"received READY ",
		"sent EVAL pw::Application getVersion",
		"received OK Pointwise V18.4R1",
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if fmt.Sprint(recorder.entries) != fmt.Sprint(want) {
		t.Errorf("journal = %q, want %q", recorder.entries, want)
	}
}
