// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides channel helpers for tests that coordinate
// with goroutines: a fake Glyph server, a background reader, or a
// subprocess. Each helper bounds its wait with a wall-clock timeout and
// fails the test instead of hanging it.
package testutil
