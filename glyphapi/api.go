// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyphapi

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/glyph/glyph"
	"github.com/bureau-foundation/glyph/lib/tcl"
)

// Session is the request surface the API needs. *glyph.Client
// implements it.
type Session interface {
	Eval(ctx context.Context, script string) (string, error)
	Execute(ctx context.Context, command string) (string, error)
	IsConnected(ctx context.Context) bool
}

// Config configures an API.
type Config struct {
	// Logger receives cleanup failures that are not returned to the
	// caller. APIs on one session share a logger: a non-nil Logger
	// replaces it, and the first API defaults it to discarding.
	Logger *slog.Logger
}

const (
	// classPrefix is the namespace of every Glyph class.
	classPrefix = "pw::"

	classNamesScript = "pw::Application getAllCommandNames"
)

// API resolves Glyph class names to Objects on one session. It is safe
// for concurrent use to the extent the session is. APIs on the same
// session share object types and bound actions.
type API struct {
	binding *binding
	classes map[string]struct{}

	mu       sync.Mutex
	resolved map[string]Object
}

// New loads the server's class names and returns an API. It fails with
// ErrNotConnected when session is nil or does not answer a ping; it
// never connects on its own. See Open for that.
func New(ctx context.Context, session Session, cfg Config) (*API, error) {
	if isNil(session) || !session.IsConnected(ctx) {
		return nil, ErrNotConnected
	}

	reply, err := session.Eval(ctx, classNamesScript)
	if err != nil {
		return nil, fmt.Errorf("glyphapi: listing classes: %w", err)
	}
	names, err := tcl.Strings(reply)
	if err != nil {
		return nil, fmt.Errorf("glyphapi: parsing class list: %w", err)
	}

	api := &API{
		binding:  bindingFor(session, cfg.Logger),
		classes:  make(map[string]struct{}, len(names)),
		resolved: make(map[string]Object),
	}
	for _, name := range names {
		api.classes[name] = struct{}{}
	}
	api.binding.log().Debug("glyph classes loaded", "count", len(names))
	return api, nil
}

// Open connects client if it is not connected and returns an API on it.
// It is the one place the package connects on the caller's behalf.
func Open(ctx context.Context, client *glyph.Client, cfg Config) (*API, error) {
	if client == nil {
		return nil, ErrNotConnected
	}
	if !client.IsConnected(ctx) {
		if err := client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("glyphapi: connecting: %w", err)
		}
	}
	return New(ctx, client, cfg)
}

func isNil(session Session) bool {
	if session == nil {
		return true
	}
	value := reflect.ValueOf(session)
	return value.Kind() == reflect.Pointer && value.IsNil()
}

// Session returns the session the API runs commands on.
func (a *API) Session() Session { return a.binding.session }

// Classes returns the server's class and command names, sorted.
func (a *API) Classes() []string {
	names := make([]string, 0, len(a.classes))
	for name := range a.classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve returns the Object for a Glyph class. The "pw::" namespace is
// added when name lacks it. Names the server did not list fail with
// ErrUnknownClass.
func (a *API) Resolve(name string) (Object, error) {
	full := name
	if !strings.HasPrefix(full, classPrefix) {
		full = classPrefix + name
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if object, ok := a.resolved[full]; ok {
		return object, nil
	}
	if _, ok := a.classes[full]; !ok {
		return Object{}, fmt.Errorf("%w: %s", ErrUnknownClass, full)
	}
	object := Object{id: full, binding: a.binding}
	a.resolved[full] = object
	return object, nil
}

// Call runs a static action of a class, as Resolve(class) followed by
// Invoke.
func (a *API) Call(ctx context.Context, class, action string, args ...any) (any, error) {
	object, err := a.Resolve(class)
	if err != nil {
		return nil, err
	}
	return object.Invoke(ctx, action, args...)
}

// Object returns the Object for an identifier. Generated instance names
// such as "::pw::Connector_1" are asked for their type unless a result
// already reported it; any other identifier is taken as a class or
// command name without a round trip.
func (a *API) Object(ctx context.Context, id string) (Object, error) {
	return a.binding.object(ctx, id)
}
