// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package glyphtest provides an in-process Glyph server for tests.
//
// [Server] listens on a loopback port and speaks the framed protocol:
// it answers the AUTH handshake (READY unless told otherwise), then
// passes each request to a [Handler] and writes back its reply. Every
// frame received is recorded so tests can assert on exactly what the
// client sent.
//
//	server := glyphtest.NewServer(t, glyphtest.Standard("Pointwise V18.4R1", nil))
//	client, _ := glyph.New(glyph.Config{Host: server.Host(), Port: server.Port()})
package glyphtest
