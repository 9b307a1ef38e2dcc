// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Request frame types sent by the client.
const (
	// TypeAuth carries the authentication token. Always the first frame
	// on a new connection.
	TypeAuth = "AUTH"

	// TypeEval carries a Tcl script evaluated with full command and
	// variable substitution.
	TypeEval = "EVAL"

	// TypeCommand carries a JSON array of command tokens. The server
	// executes it without substitution and replies with a JSON result.
	TypeCommand = "COMMAND"

	// TypeControl carries "setting" or "setting=value".
	TypeControl = "CONTROL"

	// TypePing has an empty payload. The server replies OK/"OK".
	TypePing = "PING"
)

// Response frame types sent by the server.
const (
	TypeReady    = "READY"
	TypeAuthFail = "AUTHFAIL"
	TypeBusy     = "BUSY"
	TypeOK       = "OK"
)

// TypeLength is the fixed width of the type tag on the wire.
const TypeLength = 8

// lengthPrefixSize is the size of the big-endian length field.
const lengthPrefixSize = 4

// MaxLength bounds the length field of an incoming frame. Glyph results
// for large grids (point lists, entity lists) can run to hundreds of
// megabytes of text; anything past this is a corrupt stream.
const MaxLength = 1 << 30

// ErrMalformed is returned (wrapped) when a frame header is
// self-inconsistent: a length too short to hold the type tag, a length
// above MaxLength, or a type tag that does not fit in TypeLength bytes.
var ErrMalformed = errors.New("malformed frame")

// Frame is one typed message on the wire.
type Frame struct {
	// Type is the tag with padding removed (e.g. "EVAL", "OK").
	Type string

	// Payload is the UTF-8 message body.
	Payload string
}

// IsEmpty reports whether f is the zero-length sentinel frame.
func (f Frame) IsEmpty() bool {
	return f.Type == "" && f.Payload == ""
}

// Encode returns the complete wire encoding of f: length prefix, padded
// type tag, payload.
func Encode(f Frame) ([]byte, error) {
	if len(f.Type) > TypeLength {
		return nil, fmt.Errorf("%w: type %q exceeds %d bytes", ErrMalformed, f.Type, TypeLength)
	}
	if !utf8.ValidString(f.Payload) {
		return nil, fmt.Errorf("%w: payload for %s is not valid UTF-8", ErrMalformed, f.Type)
	}
	length := TypeLength + len(f.Payload)
	if length > MaxLength {
		return nil, fmt.Errorf("%w: frame length %d exceeds maximum %d", ErrMalformed, length, MaxLength)
	}

	buffer := make([]byte, lengthPrefixSize+length)
	binary.BigEndian.PutUint32(buffer[:lengthPrefixSize], uint32(length))
	tag := buffer[lengthPrefixSize : lengthPrefixSize+TypeLength]
	copy(tag, f.Type)
	for i := len(f.Type); i < TypeLength; i++ {
		tag[i] = ' '
	}
	copy(buffer[lengthPrefixSize+TypeLength:], f.Payload)
	return buffer, nil
}

// Write encodes f and writes it to w in a single Write call, so a frame
// is either handed to the kernel whole or the connection is broken. A
// short write is reported as io.ErrShortWrite.
func Write(w io.Writer, f Frame) error {
	buffer, err := Encode(f)
	if err != nil {
		return err
	}
	written, err := w.Write(buffer)
	if err != nil {
		return fmt.Errorf("write %s frame: %w", f.Type, err)
	}
	if written != len(buffer) {
		return fmt.Errorf("write %s frame: %w", f.Type, io.ErrShortWrite)
	}
	return nil
}

// Read reads one frame from r.
//
// If the stream ends cleanly before any byte of the length prefix
// arrives, Read returns io.EOF unwrapped: the peer hung up between
// messages. A stream that ends part-way through a frame returns an error
// wrapping io.ErrUnexpectedEOF. A zero length decodes to the empty frame.
func Read(r io.Reader) (Frame, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("read frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 {
		return Frame{}, nil
	}
	if length < TypeLength {
		return Frame{}, fmt.Errorf("%w: length %d shorter than type tag", ErrMalformed, length)
	}
	if length > MaxLength {
		return Frame{}, fmt.Errorf("%w: length %d exceeds maximum %d", ErrMalformed, length, MaxLength)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, fmt.Errorf("read frame body (%d bytes): %w", length, err)
	}

	return Frame{
		Type:    strings.TrimSpace(string(body[:TypeLength])),
		Payload: string(body[TypeLength:]),
	}, nil
}
