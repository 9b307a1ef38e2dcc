// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame implements the Glyph server wire format: every message is
// a 4-byte big-endian length, an 8-byte left-justified ASCII type tag, and
// a UTF-8 payload. The length counts the tag and the payload, so a frame
// with an empty payload has length 8.
//
// A length of zero is legal on the wire and decodes to an empty frame
// (empty type, empty payload). The server uses it as an end-of-stream
// marker; callers treat it like any other unexpected response type.
//
// The package has no knowledge of sessions, authentication, or commands.
// It only moves typed byte strings across an io.Reader / io.Writer pair.
package frame
