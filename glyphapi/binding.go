// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyphapi

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"weak"
)

// maxCachedEntries bounds each per-session cache of object types and
// bound actions.
const maxCachedEntries = 4096

// binding is the state shared by every API and Object on one session.
// Objects carry only their identifier and a pointer to the binding, so
// two Objects for one identifier on one session are ==.
type binding struct {
	session Session
	logger  atomic.Pointer[slog.Logger]

	mu      sync.Mutex
	types   *fifoCache[string, string]
	actions *fifoCache[actionKey, Action]
}

type actionKey struct {
	id     string
	action string
}

// registry interns bindings by session. Entries whose binding is no
// longer referenced are dropped the next time a binding is created.
var registry = struct {
	mu       sync.Mutex
	bindings map[Session]weak.Pointer[binding]
}{bindings: make(map[Session]weak.Pointer[binding])}

// bindingFor returns the binding for session, creating it on first use.
// A non-nil logger replaces the binding's logger.
func bindingFor(session Session, logger *slog.Logger) *binding {
	if !reflect.TypeOf(session).Comparable() {
		return newBinding(session, logger)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if ref, ok := registry.bindings[session]; ok {
		if existing := ref.Value(); existing != nil {
			if logger != nil {
				existing.logger.Store(logger)
			}
			return existing
		}
	}
	for key, ref := range registry.bindings {
		if ref.Value() == nil {
			delete(registry.bindings, key)
		}
	}
	created := newBinding(session, logger)
	registry.bindings[session] = weak.Make(created)
	return created
}

func newBinding(session Session, logger *slog.Logger) *binding {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &binding{
		session: session,
		types:   newFIFOCache[string, string](maxCachedEntries),
		actions: newFIFOCache[actionKey, Action](maxCachedEntries),
	}
	b.logger.Store(logger)
	return b
}

func (b *binding) log() *slog.Logger { return b.logger.Load() }

// instance returns the Object for id, remembering typ when it is known.
func (b *binding) instance(id, typ string) Object {
	if typ != "" {
		b.mu.Lock()
		b.types.put(id, typ)
		b.mu.Unlock()
	}
	return Object{id: id, binding: b}
}

// typeOf returns the remembered type of id, or "" when none is cached.
func (b *binding) typeOf(id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	typ, _ := b.types.get(id)
	return typ
}

// object returns the Object for an identifier. A generated instance name
// whose type is not cached is asked for it.
func (b *binding) object(ctx context.Context, id string) (Object, error) {
	if !objectPattern.MatchString(id) || b.typeOf(id) != "" {
		return Object{id: id, binding: b}, nil
	}
	reply, err := b.session.Eval(ctx, id+" getType")
	if err != nil {
		return Object{}, fmt.Errorf("glyphapi: type of %s: %w", id, err)
	}
	return b.instance(id, strings.TrimSpace(reply)), nil
}

// action returns the cached Action for name on object, binding it on
// first use.
func (b *binding) action(object Object, name string) Action {
	key := actionKey{id: object.id, action: name}

	b.mu.Lock()
	defer b.mu.Unlock()
	if bound, ok := b.actions.get(key); ok {
		return bound
	}
	bound := func(ctx context.Context, args ...any) (any, error) {
		return object.Invoke(ctx, name, args...)
	}
	b.actions.put(key, bound)
	return bound
}

// fifoCache is a map holding at most limit entries. Inserting into a full
// cache evicts the oldest entry.
type fifoCache[K comparable, V any] struct {
	limit   int
	entries map[K]V
	order   []K
	next    int
}

func newFIFOCache[K comparable, V any](limit int) *fifoCache[K, V] {
	return &fifoCache[K, V]{limit: limit, entries: make(map[K]V)}
}

func (c *fifoCache[K, V]) get(key K) (V, bool) {
	value, ok := c.entries[key]
	return value, ok
}

func (c *fifoCache[K, V]) put(key K, value V) {
	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}
	if len(c.order) < c.limit {
		c.order = append(c.order, key)
	} else {
		delete(c.entries, c.order[c.next])
		c.order[c.next] = key
		c.next = (c.next + 1) % c.limit
	}
	c.entries[key] = value
}

func (c *fifoCache[K, V]) len() int { return len(c.entries) }
