// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package glyphapi presents Glyph classes and objects as Go values that
// run remote actions.
//
// An [API] is built from a connected session. It loads the server's
// class names once and resolves them to [Object] values:
//
//	api, err := glyphapi.New(ctx, client, glyphapi.Config{})
//	connector, err := api.Resolve("Connector")
//	con, err := connector.Create(ctx)
//	_, err = con.(glyphapi.Object).Invoke(ctx, "setDimension", 11)
//
// Actions are invoked by name. Arguments of type [Switch] (built with
// [Sw]) become "-name value" switches placed before the positional
// arguments, in call order. A switch name ending in an underscore splices
// a list value's elements after the switch instead of passing the list
// as one word. A boolean switch without the underscore is a flag: true
// emits the bare switch and false omits it.
//
// A [Var] stands for a Tcl variable that an action fills in, such as the
// result variable of pw::Display selectEntities. After the action
// succeeds the variable's contents are read back into the Var and the
// temporary remote variable is unset.
//
// Mode and examine objects are scoped with [Object.Enter] or
// [Object.With]: leaving a mode scope ends the mode, or aborts it when
// the scope failed, and leaving an examine scope deletes the examiner.
package glyphapi
