// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the glyph CLI.
//
// The central type is [Command], a named subcommand with optional nested
// [Command.Subcommands], a [pflag.FlagSet] factory, and a Run function.
// Commands are assembled into a tree in cmd/glyph/commands and dispatched
// via [Command.Execute], which handles flag parsing, subcommand routing,
// and help output with examples. Unknown subcommands and flags get a
// "did you mean" suggestion by Levenshtein distance.
//
// Flags are usually declared as tagged struct fields and bound with
// [FlagsFromParams]. Embedding [JSONOutput] adds a --json flag.
//
// [NewLogger] builds the slog logger commands share, and [Styles] and
// [HighlightTcl] render terminal output when the writer supports color.
package cli
