// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyphapi

import (
	"context"
	"fmt"
	"strings"
)

// Object is a Glyph class or object on the server. Objects are values:
// two Objects for the same identifier on the same session compare equal
// with == and key a map as one entry, whichever API or result they came
// from.
type Object struct {
	id      string
	binding *binding
}

// Action runs one named action of an Object.
type Action func(ctx context.Context, args ...any) (any, error)

// ID returns the identifier commands use for the object, such as
// "pw::Connector" or "::pw::Connector_1".
func (o Object) ID() string { return o.id }

// Type returns the object's Glyph type, such as "pw::Connector", as
// reported by the server. It is empty for classes and for objects whose
// type is no longer cached; Invoke(ctx, "getType") asks again.
func (o Object) Type() string {
	if o.binding == nil {
		return ""
	}
	return o.binding.typeOf(o.id)
}

// IsClass reports whether the Object names a class rather than an
// instance.
func (o Object) IsClass() bool {
	return !objectPattern.MatchString(o.id) && o.Type() == ""
}

func (o Object) unbound() error {
	return fmt.Errorf("glyphapi: %q is not bound to an API", o.id)
}

func (o Object) String() string { return o.id }

// IsObjectID reports whether id has the form of a generated instance
// name, such as "::pw::Connector_1".
func IsObjectID(id string) bool {
	return objectPattern.MatchString(id)
}

// Equal reports whether o and other name the same identifier.
func (o Object) Equal(other Object) bool {
	return o.id == other.id
}

// Invoke runs action on the object and returns its converted result.
// Switch arguments are placed first; see Build.
//
// Vars among the arguments are read back after the action succeeds and
// their remote variables are unset in a single request. The unset also
// runs when the server rejects the action, and its own failure is only
// logged.
func (o Object) Invoke(ctx context.Context, action string, args ...any) (any, error) {
	if o.binding == nil {
		return nil, o.unbound()
	}
	command, err := Build(o.id, action, args...)
	if err != nil {
		return nil, err
	}

	result, err := o.binding.run(ctx, command)
	if err != nil {
		if serverRejected(err) {
			o.binding.unset(ctx, command)
		}
		return nil, err
	}
	defer o.binding.unset(ctx, command)
	if err := o.binding.collect(ctx, command); err != nil {
		return result, err
	}
	return result, nil
}

// Action returns the callable for a named action. The callable is bound
// once per object identifier and reused while it stays in the session's
// bounded cache.
func (o Object) Action(name string) Action {
	if o.binding == nil {
		return func(ctx context.Context, args ...any) (any, error) {
			return o.Invoke(ctx, name, args...)
		}
	}
	return o.binding.action(o, name)
}

// Create runs the class's create action and returns the result,
// normally the new Object.
func (o Object) Create(ctx context.Context, args ...any) (any, error) {
	if !o.IsClass() {
		return nil, fmt.Errorf("%w: %s", ErrNotCreatable, o.id)
	}
	return o.Invoke(ctx, "create", args...)
}

// SameAs asks the server whether o and other are the same object.
func (o Object) SameAs(ctx context.Context, other Object) (bool, error) {
	result, err := o.Invoke(ctx, "equals", other)
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

// Describe renders the object with its entity name, such as
// "::pw::Connector_1 (con-1)". Objects that are not entities have an
// empty name.
func (o Object) Describe(ctx context.Context) (string, error) {
	if o.binding == nil {
		return "", o.unbound()
	}
	name, err := o.binding.session.Eval(ctx, fmt.Sprintf("if [%s isOfType pw::Entity] { %s getName }", o.id, o.id))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s)", o.id, strings.TrimSpace(name)), nil
}
