// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyphapi

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/glyph/glyph"
	"github.com/bureau-foundation/glyph/lib/frame"
	"github.com/bureau-foundation/glyph/lib/glyphtest"
)

func glyphServer(t *testing.T) *glyphtest.Server {
	t.Helper()
	return glyphtest.NewServer(t, glyphtest.Standard(glyphtest.DefaultVersion, func(request frame.Frame) frame.Frame {
		switch {
		case request.Type == frame.TypeEval && request.Payload == classNamesScript:
			return glyphtest.OK("pw::Application pw::Connector")
		case request.Type == frame.TypeCommand && request.Payload == `["pw::Application","getVersion"]`:
			return glyphtest.OK(`"Pointwise V18.4R1"`)
		case request.Type == frame.TypeCommand && request.Payload == `["pw::Connector","create"]`:
			return glyphtest.OK(`{"command":"::pw::Connector_1","type":"pw::Connector"}`)
		}
		return glyphtest.Fail("invalid command name")
	}))
}

func newClient(t *testing.T, server *glyphtest.Server) *glyph.Client {
	t.Helper()
	client, err := glyph.New(glyph.Config{
		Host:            server.Host(),
		Port:            server.Port(),
		ConnectAttempts: 1,
		LookupEnv:       func(string) (string, bool) { return "", false },
	})
	if err != nil {
		t.Fatalf("glyph.New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestOpenConnectsOnce(t *testing.T) {
	t.Parallel()

	server := glyphServer(t)
	client := newClient(t, server)
	ctx := context.Background()

	if _, err := New(ctx, client, Config{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("New on a disconnected client error = %v, want ErrNotConnected", err)
	}
	if server.Accepted() != 0 {
		t.Fatal("New connected on its own")
	}

	api, err := Open(ctx, client, Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	version, err := api.Call(ctx, "Application", "getVersion")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if version != "Pointwise V18.4R1" {
		t.Errorf("getVersion = %v, want Pointwise V18.4R1", version)
	}

	connector, err := api.Resolve("Connector")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	created, err := connector.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if object, ok := created.(Object); !ok || object.Type() != "pw::Connector" {
		t.Errorf("Create = %#v", created)
	}

	// A second Open reuses the live connection.
	if _, err := Open(ctx, client, Config{}); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if got := server.Accepted(); got != 1 {
		t.Errorf("connections = %d, want 1", got)
	}
}

func TestOpenReportsConnectFailure(t *testing.T) {
	t.Parallel()

	server := glyphServer(t)
	server.SetHandshake(func(string) frame.Frame { return frame.Frame{Type: frame.TypeBusy} })
	client := newClient(t, server)

	_, err := Open(context.Background(), client, Config{})
	if !errors.Is(err, glyph.ErrServerBusy) {
		t.Errorf("Open error = %v, want ErrServerBusy", err)
	}
	if !client.IsBusy() {
		t.Error("IsBusy() = false after a BUSY handshake")
	}

	if _, err := Open(context.Background(), nil, Config{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Open(nil) error = %v, want ErrNotConnected", err)
	}
}
