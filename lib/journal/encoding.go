// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode writes records with Core Deterministic Encoding (RFC 8949
// §4.2), so the same record always produces the same bytes. Timestamps
// are RFC 3339 text with nanoseconds, which keeps a journal readable
// with generic CBOR tools.
var encMode cbor.EncMode

// decMode rejects records with a repeated key. Unknown keys are
// ignored.
var decMode cbor.DecMode

func init() {
	var err error

	options := cbor.CoreDetEncOptions()
	options.Time = cbor.TimeRFC3339Nano
	encMode, err = options.EncMode()
	if err != nil {
		panic("journal: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("journal: CBOR decoder initialization failed: " + err.Error())
	}
}
