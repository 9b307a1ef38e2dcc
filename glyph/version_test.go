// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyph

import (
	"errors"
	"strings"
	"testing"
)

func TestParseServerVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text    string
		want    ServerVersion
		wantErr bool
	}{
		{"Pointwise V18.4R1", ServerVersion{18, 4}, false},
		{"Server: Pointwise V18.3R2 (64-bit)", ServerVersion{18, 3}, false},
		{"Pointwise V17.10", ServerVersion{17, 10}, false},
		{"Pointwise 18.4", ServerVersion{}, true},
		{"", ServerVersion{}, true},
	}
	for _, test := range tests {
		got, err := ParseServerVersion(test.text)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseServerVersion(%q) error = %v, wantErr %v", test.text, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("ParseServerVersion(%q) = %v, want %v", test.text, got, test.want)
		}
	}
}

func TestServerVersionCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b ServerVersion
		want int
	}{
		{ServerVersion{18, 3}, CompatibilityThreshold, 0},
		{ServerVersion{18, 2}, CompatibilityThreshold, -1},
		{ServerVersion{18, 10}, CompatibilityThreshold, 1},
		{ServerVersion{17, 9}, CompatibilityThreshold, -1},
		{ServerVersion{19, 0}, CompatibilityThreshold, 1},
	}
	for _, test := range tests {
		if got := test.a.Compare(test.b); got != test.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
	if got := (ServerVersion{18, 4}).String(); got != "18.4" {
		t.Errorf("String() = %q, want 18.4", got)
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	closed := &CommandError{Command: "exit", Err: ErrConnectionClosed}
	if !errors.Is(closed, ErrConnectionClosed) {
		t.Error("CommandError does not unwrap to its cause")
	}
	if !strings.Contains(closed.Error(), `"exit"`) {
		t.Errorf("CommandError message %q does not name the command", closed.Error())
	}

	failed := &CommandError{Command: "pw::Bogus", Message: `invalid command name "pw::Bogus"`}
	if got, want := failed.Error(), `glyph command "pw::Bogus" failed: invalid command name "pw::Bogus"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	startup := &StartupError{Program: "pointwise", Output: "License checkout failed", Reason: "no server version in output"}
	var license error = &LicenseError{Startup: startup}
	var asStartup *StartupError
	if !errors.As(license, &asStartup) || asStartup != startup {
		t.Error("LicenseError is not matched as its StartupError")
	}
	if !strings.Contains(license.Error(), "License checkout failed") {
		t.Errorf("LicenseError message %q lacks server output", license.Error())
	}

	transport := &TransportError{Op: "EVAL", Err: ErrConnectionClosed}
	if got, want := transport.Error(), "glyph EVAL: glyph: server connection is closed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
