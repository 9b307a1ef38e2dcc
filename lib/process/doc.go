// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint error handler for the glyph
// binary, used when an error escapes before the logger exists.
package process
