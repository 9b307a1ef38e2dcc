// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyphapi

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/glyph/glyph"
)

var (
	// ErrNotConnected is returned when an API is built on a session
	// without a live connection. It is the same value as
	// glyph.ErrNotConnected.
	ErrNotConnected = glyph.ErrNotConnected

	// ErrUnknownClass is returned by API.Resolve for a name the server
	// did not list among its classes.
	ErrUnknownClass = errors.New("glyphapi: unknown Glyph class")

	// ErrNoValue is returned when reading a Var that no action has
	// filled in, or whose remote variable did not exist.
	ErrNoValue = errors.New("glyphapi: variable has no value")

	// ErrNotCreatable is returned by Object.Create on a target that is
	// not a class.
	ErrNotCreatable = errors.New("glyphapi: only classes can create objects")

	// ErrNilArgument is returned by Build for a nil *Var or *Object
	// argument.
	ErrNilArgument = errors.New("glyphapi: nil argument")
)

// errScopeAbandoned is the abort cause when a scope body exits without
// returning.
var errScopeAbandoned = errors.New("glyphapi: scope body did not return")

// CapabilityError is returned when a scope is entered on an object that
// is neither a pw::Mode nor a pw::Examine.
type CapabilityError struct {
	Object string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("glyphapi: %s is neither a mode nor an examine object and cannot be scoped", e.Object)
}

// IndexError reports a Var subscript that does not fit its value.
type IndexError struct {
	Key   any
	Value any
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("glyphapi: cannot index %T with %v", e.Value, e.Key)
}
