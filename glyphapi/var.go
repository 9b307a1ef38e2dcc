// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyphapi

import (
	"iter"
	"slices"
)

// Var is a Tcl variable passed to an action that stores a result in it.
// Passing a Var binds it to a variable name for that command; when the
// action succeeds the variable's contents are read back into the Var.
//
// The value is a map[string]any for a Tcl array (each element a []any),
// otherwise the parsed list or scalar. A variable the action did not set
// reads back as nil. A Var is not safe for concurrent use.
type Var struct {
	name      string
	value     any
	populated bool
}

// NewVar returns a Var that is bound to a fresh temporary variable in
// each command it appears in. The temporary is unset after the action.
func NewVar() *Var {
	return &Var{}
}

// NamedVar returns a Var bound to the Tcl variable name in every command.
// Named variables are read back and unset like temporaries.
func NamedVar(name string) *Var {
	return &Var{name: name}
}

// Name returns the fixed variable name, or "" for a temporary Var.
func (v *Var) Name() string { return v.name }

// Populated reports whether an action has filled in the Var.
func (v *Var) Populated() bool { return v.populated }

// Value returns the variable's contents, or ErrNoValue if no action has
// filled in the Var.
func (v *Var) Value() (any, error) {
	if !v.populated {
		return nil, ErrNoValue
	}
	return v.value, nil
}

func (v *Var) store(value any) {
	v.value = value
	v.populated = true
}

// Index returns an element of the value: a map entry by string key, or
// a list element by int position.
func (v *Var) Index(key any) (any, error) {
	if !v.populated || v.value == nil {
		return nil, ErrNoValue
	}
	switch value := v.value.(type) {
	case map[string]any:
		name, ok := key.(string)
		if !ok {
			return nil, &IndexError{Key: key, Value: v.value}
		}
		element, ok := value[name]
		if !ok {
			return nil, &IndexError{Key: key, Value: v.value}
		}
		return element, nil
	case []any:
		position, ok := key.(int)
		if !ok || position < 0 || position >= len(value) {
			return nil, &IndexError{Key: key, Value: v.value}
		}
		return value[position], nil
	}
	return nil, &IndexError{Key: key, Value: v.value}
}

// Set replaces an element of the value, with the same keys as Index. A
// map accepts new keys.
func (v *Var) Set(key, element any) error {
	if !v.populated || v.value == nil {
		return ErrNoValue
	}
	switch value := v.value.(type) {
	case map[string]any:
		name, ok := key.(string)
		if !ok {
			return &IndexError{Key: key, Value: v.value}
		}
		value[name] = element
		return nil
	case []any:
		position, ok := key.(int)
		if !ok || position < 0 || position >= len(value) {
			return &IndexError{Key: key, Value: v.value}
		}
		value[position] = element
		return nil
	}
	return &IndexError{Key: key, Value: v.value}
}

// All yields the elements of a list value, the keys of a map value in
// sorted order, or a scalar value by itself. It yields nothing for an
// empty Var.
func (v *Var) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		if !v.populated || v.value == nil {
			return
		}
		switch value := v.value.(type) {
		case []any:
			for _, element := range value {
				if !yield(element) {
					return
				}
			}
		case map[string]any:
			keys := make([]string, 0, len(value))
			for key := range value {
				keys = append(keys, key)
			}
			slices.Sort(keys)
			for _, key := range keys {
				if !yield(key) {
					return
				}
			}
		default:
			yield(value)
		}
	}
}

// Len returns the number of elements All yields.
func (v *Var) Len() int {
	return len(slices.Collect(v.All()))
}
