// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyphapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ScopeKind is the lifecycle a scoped object follows.
type ScopeKind int

const (
	// ModeScope objects derive from pw::Mode. Leaving the scope ends the
	// mode, or aborts it when the scope failed.
	ModeScope ScopeKind = iota + 1

	// ExamineScope objects derive from pw::Examine. Leaving the scope
	// deletes the examiner.
	ExamineScope
)

func (k ScopeKind) String() string {
	switch k {
	case ModeScope:
		return "mode"
	case ExamineScope:
		return "examine"
	default:
		return "ScopeKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Scope is an entered mode or examine object. Closing actions are best
// effort: failures are logged and never returned.
type Scope struct {
	object Object
	kind   ScopeKind

	mu   sync.Mutex
	open bool
}

// Enter opens a scope on the object. The object is asked whether it is a
// pw::Examine and then whether it is a pw::Mode; if it is neither, Enter
// returns a *CapabilityError.
func (o Object) Enter(ctx context.Context) (*Scope, error) {
	kind, err := o.scopeKind(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{object: o, kind: kind, open: true}, nil
}

// With runs fn inside a scope on the object. The scope is left when fn
// returns, with fn's error deciding between end and abort for a mode. A
// panic in fn aborts the mode and is re-raised, and fn leaving by
// runtime.Goexit aborts it too.
func (o Object) With(ctx context.Context, fn func(*Scope) error) error {
	scope, err := o.Enter(ctx)
	if err != nil {
		return err
	}
	returned := false
	defer func() {
		if returned {
			return
		}
		recovered := recover()
		cause := errScopeAbandoned
		if recovered != nil {
			cause = fmt.Errorf("panic: %v", recovered)
		}
		scope.Exit(ctx, cause)
		if recovered != nil {
			panic(recovered)
		}
	}()
	err = fn(scope)
	returned = true
	scope.Exit(ctx, err)
	return err
}

func (o Object) scopeKind(ctx context.Context) (ScopeKind, error) {
	examine, err := o.isOfType(ctx, "pw::Examine")
	if err != nil {
		return 0, err
	}
	if examine {
		return ExamineScope, nil
	}
	mode, err := o.isOfType(ctx, "pw::Mode")
	if err != nil {
		return 0, err
	}
	if mode {
		return ModeScope, nil
	}
	return 0, &CapabilityError{Object: o.id}
}

// isOfType asks the server whether the object derives from class. A
// server-side failure, as for an identifier that is not an object, means
// no.
func (o Object) isOfType(ctx context.Context, class string) (bool, error) {
	if o.binding == nil {
		return false, o.unbound()
	}
	reply, err := o.binding.session.Eval(ctx, o.id+" isOfType "+class)
	if err != nil {
		if serverRejected(err) {
			return false, nil
		}
		return false, err
	}
	value, err := strconv.ParseBool(strings.TrimSpace(reply))
	return err == nil && value, nil
}

// Object returns the scoped object.
func (s *Scope) Object() Object { return s.object }

// Kind returns whether the scope is a mode or an examine scope.
func (s *Scope) Kind() ScopeKind { return s.kind }

// IsOpen reports whether the scope's closing action has not yet run.
func (s *Scope) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// End ends a mode scope early. It does nothing on a closed scope or an
// examine scope. A failed end leaves the scope open.
func (s *Scope) End(ctx context.Context) {
	if s.kind == ModeScope {
		s.close(ctx, "end", false)
	}
}

// Delete deletes an examine scope's examiner early. It does nothing on a
// closed scope or a mode scope. A failed delete leaves the scope open.
func (s *Scope) Delete(ctx context.Context) {
	if s.kind == ExamineScope {
		s.close(ctx, "delete", false)
	}
}

// Exit leaves the scope: a mode ends when cause is nil and aborts
// otherwise, an examiner is deleted. The scope is closed afterwards even
// if the action failed. Exit on a closed scope does nothing.
func (s *Scope) Exit(ctx context.Context, cause error) {
	action := "delete"
	if s.kind == ModeScope {
		action = "end"
		if cause != nil {
			action = "abort"
		}
	}
	s.close(ctx, action, true)
}

func (s *Scope) close(ctx context.Context, action string, always bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	b := s.object.binding
	if _, err := b.session.Eval(context.WithoutCancel(ctx), s.object.id+" "+action); err != nil {
		b.log().Warn("closing glyph scope", "object", s.object.id, "kind", s.kind, "action", action, "error", err)
		if !always {
			return
		}
	}
	s.open = false
}
