// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build identity of the glyph binary.
//
// [GitCommit], [BuildTime], and [Version] are injected with -ldflags -X.
// When they are not, [Info] falls back to the VCS stamp the Go toolchain
// embeds in module builds.
package version
