// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the TCP helpers shared by the Glyph client and
// its test servers.
package netutil
