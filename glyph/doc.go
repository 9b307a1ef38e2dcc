// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package glyph is a client for the Pointwise Glyph server.
//
// A [Client] owns one TCP connection and speaks the framed request and
// response protocol from lib/frame: it authenticates, optionally pins a
// Glyph compatibility version, and then evaluates Tcl scripts (EVAL),
// runs structured commands (COMMAND), and reads or changes server
// settings (CONTROL). The protocol is strictly one request at a time;
// the client serializes concurrent callers.
//
//	client, err := glyph.New(glyph.Config{})
//	if err != nil { ... }
//	if err := client.Connect(ctx); err != nil {
//	    switch {
//	    case errors.Is(err, glyph.ErrServerBusy): ...
//	    case errors.Is(err, glyph.ErrAuthFailed): ...
//	    }
//	}
//	defer client.Close()
//	version, err := client.Eval(ctx, "pw::Application getVersion")
//
// [StartServer] launches a batch server process on a free port and
// returns a client bound to it. Closing that client stops the process.
//
// Settings not given explicitly in [Config] come from the environment
// (PWI_GLYPH_SERVER_PORT, PWI_GLYPH_SERVER_AUTH, PWI_GLYPH_SERVER_HOST)
// and then from lib/config defaults, resolved once in [New].
package glyph
