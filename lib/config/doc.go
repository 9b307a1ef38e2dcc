// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config resolves how a Glyph client reaches its server.
//
// A [Connection] gathers every setting: host, port, auth token, the
// compatibility version requested from the server, connect timing, and
// the settings for a self-hosted server process. Settings come from four
// layers, highest precedence first:
//
//  1. explicit values (constructor fields, command-line flags)
//  2. the environment (PWI_GLYPH_SERVER_PORT, PWI_GLYPH_SERVER_AUTH,
//     PWI_GLYPH_SERVER_HOST)
//  3. a named profile from a profile file (YAML, or JSON with comments)
//  4. built-in defaults
//
// [Resolve] merges the layers once, field by field: a zero value means
// "not set here" and falls through to the next layer.
package config
