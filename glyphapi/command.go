// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyphapi

import (
	"encoding/json"
	"fmt"
	"go/token"
	"reflect"
	"strings"

	"github.com/bureau-foundation/glyph/lib/tcl"
)

// flattenMarker ends a switch name whose list value is spliced, and an
// action name that would otherwise be a reserved word.
const flattenMarker = "_"

// tempVarFormat names the temporary Tcl variables bound to unnamed Vars,
// numbered per command.
const tempVarFormat = "_TMPvar_%d"

// Switch is a "-name value" argument to an action.
type Switch struct {
	Name  string
	Value any
}

// Sw returns the switch -name with value. See the package documentation
// for the flag and flattening conventions.
func Sw(name string, value any) Switch {
	return Switch{Name: name, Value: value}
}

// Command is one action invocation in wire form.
type Command struct {
	// Tokens is the target, the action, the switches, and then the
	// positional arguments. Objects and Vars have been replaced by
	// their names.
	Tokens []any

	bindings []varBinding
}

// varBinding records the Tcl variable name a Var was given in a command.
type varBinding struct {
	v    *Var
	name string
}

// Build assembles the command that runs action on target. Arguments of
// type Switch are emitted first, in the order given; everything else is
// positional and follows the switches.
func Build(target, action string, args ...any) (*Command, error) {
	if trimmed, ok := strings.CutSuffix(action, flattenMarker); ok && token.IsKeyword(trimmed) {
		action = trimmed
	}
	if target == "" || action == "" {
		return nil, fmt.Errorf("glyphapi: command needs a target and an action (target %q, action %q)", target, action)
	}

	command := &Command{Tokens: []any{target, action}}
	var positional []any
	for _, arg := range args {
		sw, ok := arg.(Switch)
		if !ok {
			positional = append(positional, arg)
			continue
		}
		if err := command.addSwitch(sw); err != nil {
			return nil, err
		}
	}
	for _, arg := range positional {
		encoded, err := command.encode(arg)
		if err != nil {
			return nil, err
		}
		command.Tokens = append(command.Tokens, encoded)
	}
	return command, nil
}

func (c *Command) addSwitch(sw Switch) error {
	name, flatten := strings.CutSuffix(sw.Name, flattenMarker)
	if name == "" || strings.HasPrefix(name, "-") {
		return fmt.Errorf("glyphapi: invalid switch name %q", sw.Name)
	}

	flag, isBool := sw.Value.(bool)
	if isBool && !flatten && !flag {
		return nil
	}
	c.Tokens = append(c.Tokens, "-"+name)

	switch {
	case isBool && flatten:
		c.Tokens = append(c.Tokens, fmt.Sprint(flag))
	case isBool:
	case flatten:
		encoded, err := c.encode(sw.Value)
		if err != nil {
			return fmt.Errorf("switch -%s: %w", name, err)
		}
		if items, ok := encoded.([]any); ok {
			c.Tokens = append(c.Tokens, items...)
		} else {
			c.Tokens = append(c.Tokens, encoded)
		}
	default:
		encoded, err := c.encode(sw.Value)
		if err != nil {
			return fmt.Errorf("switch -%s: %w", name, err)
		}
		c.Tokens = append(c.Tokens, encoded)
	}
	return nil
}

// encode converts an argument to its wire form: a Var becomes its bound
// variable name, an Object its identifier, and any slice or array a
// []any of encoded elements. Other values pass through unchanged. A nil
// *Var or *Object fails with ErrNilArgument.
func (c *Command) encode(value any) (any, error) {
	switch typed := value.(type) {
	case *Var:
		if typed == nil {
			return nil, fmt.Errorf("%w: *Var", ErrNilArgument)
		}
		return c.bind(typed), nil
	case Object:
		return typed.id, nil
	case *Object:
		if typed == nil {
			return nil, fmt.Errorf("%w: *Object", ErrNilArgument)
		}
		return typed.id, nil
	case string, []byte, nil:
		return value, nil
	}

	reflected := reflect.ValueOf(value)
	switch reflected.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, reflected.Len())
		for i := range items {
			encoded, err := c.encode(reflected.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			items[i] = encoded
		}
		return items, nil
	}
	return value, nil
}

// bind returns v's variable name in this command, allocating a
// temporary one the first time an unnamed Var appears.
func (c *Command) bind(v *Var) string {
	for _, existing := range c.bindings {
		if existing.v == v {
			return existing.name
		}
	}
	name := v.name
	if name == "" {
		name = fmt.Sprintf(tempVarFormat, len(c.bindings))
	}
	c.bindings = append(c.bindings, varBinding{v: v, name: name})
	return name
}

// Variables returns the Tcl variable names bound in the command, in the
// order they first appear.
func (c *Command) Variables() []string {
	names := make([]string, len(c.bindings))
	for i, b := range c.bindings {
		names[i] = b.name
	}
	return names
}

// JSON renders the command as the JSON array sent in a COMMAND request.
func (c *Command) JSON() (string, error) {
	data, err := json.Marshal(c.Tokens)
	if err != nil {
		return "", fmt.Errorf("glyphapi: encoding command %v: %w", c.Tokens[:2], err)
	}
	return string(data), nil
}

// Script renders the command as a Tcl script for an EVAL request. Every
// token is quoted, so the server performs no substitution.
func (c *Command) Script() string {
	return tcl.FormatScript(c.Tokens)
}

func (c *Command) String() string {
	return c.Script()
}
