// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tcl converts between Glyph's Tcl list text and Go values.
//
// Glyph replies to EVAL requests with Tcl list text: words separated by
// spaces, tabs, or newlines, braces for nesting, and a backslash that
// escapes exactly one of \ { } [ ] $. [ParseList] reads that grammar into
// nested []any values and hands every leaf word to a caller-supplied
// [LeafFunc]; [Scalar] is the standard leaf conversion (trimmed string,
// int, or float64). [Format] goes the other way and renders Go values as
// list text that ParseList reads back unchanged. [FormatScript] quotes
// for the Tcl interpreter instead, which is how a token list becomes an
// EVAL script.
//
// The package knows nothing about Glyph objects. The glyphapi package
// layers object-name recognition on top through its own LeafFunc.
package tcl
