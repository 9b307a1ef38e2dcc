// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records Glyph frames to a file for later inspection.
//
// A journal is a CBOR sequence of [Record] values, one per frame sent or
// received, in deterministic CBOR. The file extension picks the
// stream compression: ".zst" for zstd, ".lz4" for LZ4 frames, anything
// else for plain CBOR. [Reader] reverses the process, and "glyph
// journal" prints a journal as text.
package journal
