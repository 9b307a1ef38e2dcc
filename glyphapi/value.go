// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyphapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bureau-foundation/glyph/glyph"
	"github.com/bureau-foundation/glyph/lib/tcl"
)

// objectPattern matches the generated names of Glyph objects, such as
// "::pw::Connector_12".
var objectPattern = regexp.MustCompile(`^::pw::[a-zA-Z]+_\d+( |$)`)

// unsetFormat removes a variable if it exists.
const unsetFormat = "if [info exists %s] { unset %s }"

// run executes command as a COMMAND request and converts the reply.
func (b *binding) run(ctx context.Context, command *Command) (any, error) {
	payload, err := command.JSON()
	if err != nil {
		return nil, err
	}
	reply, err := b.session.Execute(ctx, payload)
	if err != nil {
		return nil, err
	}
	return b.decodeResult(ctx, reply)
}

// decodeResult converts the JSON reply of a COMMAND request. Object
// references, given either as {"command": ..., "type": ...} or as a
// generated name, become Objects. Other strings get the scalar
// conversion of tcl.Scalar.
func (b *binding) decodeResult(ctx context.Context, reply string) (any, error) {
	if strings.TrimSpace(reply) == "" {
		return nil, nil
	}
	decoder := json.NewDecoder(strings.NewReader(reply))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("glyphapi: decoding result %q: %w", reply, err)
	}
	return b.native(ctx, raw)
}

func (b *binding) native(ctx context.Context, value any) (any, error) {
	switch typed := value.(type) {
	case []any:
		converted := make([]any, len(typed))
		for i, element := range typed {
			native, err := b.native(ctx, element)
			if err != nil {
				return nil, err
			}
			converted[i] = native
		}
		return converted, nil
	case map[string]any:
		command, hasCommand := typed["command"]
		objectType, hasType := typed["type"]
		if hasCommand && hasType {
			return b.instance(fmt.Sprint(command), fmt.Sprint(objectType)), nil
		}
		for key, element := range typed {
			native, err := b.native(ctx, element)
			if err != nil {
				return nil, err
			}
			typed[key] = native
		}
		return typed, nil
	case json.Number:
		if integer, err := strconv.Atoi(typed.String()); err == nil {
			return integer, nil
		}
		return typed.Float64()
	case string:
		return b.word(ctx, typed)
	}
	return value, nil
}

// word converts one result word: an Object for a generated object name,
// otherwise the tcl.Scalar conversion.
func (b *binding) word(ctx context.Context, word string) (any, error) {
	if objectPattern.MatchString(word) {
		return b.object(ctx, word)
	}
	return tcl.Scalar(word)
}

// leaf adapts word to tcl.ParseList.
func (b *binding) leaf(ctx context.Context) tcl.LeafFunc {
	return func(word string) (any, error) {
		return b.word(ctx, word)
	}
}

// ParseList parses Tcl list text from an EVAL reply, converting words
// the same way action results are converted.
func (a *API) ParseList(ctx context.Context, text string) (any, error) {
	return a.binding.parseList(ctx, text)
}

func (b *binding) parseList(ctx context.Context, text string) (any, error) {
	return tcl.ParseList(text, b.leaf(ctx))
}

// readVariable fetches a Tcl variable. An array becomes a map of
// one-or-more-element lists, anything else the parsed list. A variable
// that does not exist reads as nil.
func (b *binding) readVariable(ctx context.Context, name string) (any, error) {
	exists, err := b.flag(ctx, "info exists "+name)
	if err != nil || !exists {
		return nil, err
	}
	isArray, err := b.flag(ctx, "array exists "+name)
	if err != nil {
		return nil, err
	}

	if isArray {
		text, err := b.session.Eval(ctx, "array get "+name)
		if err != nil {
			return nil, err
		}
		parsed, err := b.parseList(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("glyphapi: reading array %s: %w", name, err)
		}
		return tcl.Pairs(parsed)
	}

	text, err := b.session.Eval(ctx, "lrange $"+name+" 0 end")
	if err != nil {
		return nil, err
	}
	parsed, err := b.parseList(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("glyphapi: reading variable %s: %w", name, err)
	}
	return parsed, nil
}

// flag evaluates a script that answers with a Tcl boolean.
func (b *binding) flag(ctx context.Context, script string) (bool, error) {
	reply, err := b.session.Eval(ctx, script)
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(strings.TrimSpace(reply))
	if err != nil {
		return false, fmt.Errorf("glyphapi: %q answered %q, want a boolean", script, reply)
	}
	return value, nil
}

// collect reads every Var bound in command back from the server.
func (b *binding) collect(ctx context.Context, command *Command) error {
	for _, bound := range command.bindings {
		value, err := b.readVariable(ctx, bound.name)
		if err != nil {
			return fmt.Errorf("glyphapi: reading variable %s: %w", bound.name, err)
		}
		bound.v.store(value)
	}
	return nil
}

// unset removes command's variables from the server in one request.
// Failures are logged, never returned.
func (b *binding) unset(ctx context.Context, command *Command) {
	names := command.Variables()
	if len(names) == 0 {
		return
	}
	scripts := make([]string, len(names))
	for i, name := range names {
		scripts[i] = fmt.Sprintf(unsetFormat, name, name)
	}
	if _, err := b.session.Eval(context.WithoutCancel(ctx), strings.Join(scripts, "; ")); err != nil {
		b.log().Warn("unsetting glyph variables", "variables", names, "error", err)
	}
}

// serverRejected reports whether err is a failure the server reported,
// as opposed to a local or transport failure.
func serverRejected(err error) bool {
	var commandErr *glyph.CommandError
	return errors.As(err, &commandErr) && commandErr.Err == nil
}

// truthy interprets an action result as a boolean.
func truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case int:
		return typed != 0
	case float64:
		return typed != 0
	case string:
		parsed, err := strconv.ParseBool(typed)
		return err == nil && parsed
	case []any:
		return len(typed) > 0
	}
	return true
}
