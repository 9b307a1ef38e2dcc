// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyph

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by any request made while the client
	// has no connection. The client never reconnects implicitly.
	ErrNotConnected = errors.New("glyph: not connected to a server")

	// ErrConnectionClosed means the server closed the connection, or the
	// socket broke, while a request was outstanding.
	ErrConnectionClosed = errors.New("glyph: server connection is closed")

	// ErrAuthFailed is returned by Connect when the server answers AUTH
	// with AUTHFAIL.
	ErrAuthFailed = errors.New("glyph: server authentication failed")

	// ErrServerBusy is returned by Connect when the server answers AUTH
	// with BUSY: it is alive but serving another client.
	ErrServerBusy = errors.New("glyph: server is busy")

	// ErrUnreachable is returned by Connect when no TCP connection could
	// be made within the attempt budget.
	ErrUnreachable = errors.New("glyph: server unreachable")

	// ErrProtocol reports a reply type the protocol does not allow at
	// that point.
	ErrProtocol = errors.New("glyph: unexpected reply")
)

// TransportError is a socket-level failure: a broken write, a read cut
// short, or a cancelled call. The connection is dropped when one occurs.
type TransportError struct {
	// Op is the request type being sent ("EVAL", "AUTH", ...).
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("glyph %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CommandError reports a request the server did not answer with OK.
type CommandError struct {
	// Command is the request payload: the script, the JSON command, or
	// the control setting.
	Command string

	// Message is the server's reply payload, usually the Tcl error text.
	Message string

	// Err is set when the failure was local (not connected, connection
	// closed) rather than a server reply.
	Err error
}

func (e *CommandError) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("glyph command %q: %s: %v", e.Command, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("glyph command %q: %v", e.Command, e.Err)
	default:
		return fmt.Sprintf("glyph command %q failed: %s", e.Command, e.Message)
	}
}

func (e *CommandError) Unwrap() error { return e.Err }

// CompatibilityError is returned by Connect when the server refused the
// requested compatibility version and is new enough that the refusal is
// meaningful (see CompatibilityThreshold).
type CompatibilityError struct {
	Requested string
	Server    string
	Err       error
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("glyph: server %q rejected compatibility version %q: %v", e.Server, e.Requested, e.Err)
}

func (e *CompatibilityError) Unwrap() error { return e.Err }

// StartupError reports a self-hosted server that failed to start.
type StartupError struct {
	Program string

	// Output is the first line the process printed, if any.
	Output string

	Reason string
	Err    error
}

func (e *StartupError) Error() string {
	message := fmt.Sprintf("glyph: starting server %s: %s", e.Program, e.Reason)
	if e.Output != "" {
		message += fmt.Sprintf(" (output: %q)", e.Output)
	}
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *StartupError) Unwrap() error { return e.Err }

// LicenseError is the startup failure of a server that could not obtain
// a license. errors.As also matches it as a *StartupError.
type LicenseError struct {
	Startup *StartupError
}

func (e *LicenseError) Error() string {
	return fmt.Sprintf("glyph: server %s could not obtain a license: %s", e.Startup.Program, e.Startup.Output)
}

func (e *LicenseError) Unwrap() error { return e.Startup }
