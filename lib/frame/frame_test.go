// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		frame Frame
	}{
		{name: "auth with empty token", frame: Frame{Type: TypeAuth}},
		{name: "eval", frame: Frame{Type: TypeEval, Payload: "pw::Application getVersion"}},
		{name: "command json", frame: Frame{Type: TypeCommand, Payload: `["pw::Connector","create"]`}},
		{name: "control with value", frame: Frame{Type: TypeControl, Payload: "version=3.18.3"}},
		{name: "ping", frame: Frame{Type: TypePing}},
		{name: "full width tag", frame: Frame{Type: TypeAuthFail, Payload: "bad token"}},
		{name: "utf-8 payload", frame: Frame{Type: TypeOK, Payload: "Grüße {a b} ✓"}},
		{name: "payload with spaces at edges", frame: Frame{Type: TypeOK, Payload: "  padded  "}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var buffer bytes.Buffer
			if err := Write(&buffer, test.frame); err != nil {
				t.Fatalf("Write: %v", err)
			}

			wantLength := TypeLength + len(test.frame.Payload)
			if got := binary.BigEndian.Uint32(buffer.Bytes()[:4]); int(got) != wantLength {
				t.Errorf("length prefix: got %d, want %d", got, wantLength)
			}

			got, err := Read(&buffer)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got != test.frame {
				t.Errorf("got %+v, want %+v", got, test.frame)
			}
			if buffer.Len() != 0 {
				t.Errorf("%d trailing bytes left in buffer", buffer.Len())
			}
		})
	}
}

func TestEncodePadsTypeTag(t *testing.T) {
	t.Parallel()
	encoded, err := Encode(Frame{Type: TypeOK, Payload: "x"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0, 0, 0, 9, 'O', 'K', ' ', ' ', ' ', ' ', ' ', ' ', 'x'}
	if !bytes.Equal(encoded, want) {
		t.Errorf("got %q, want %q", encoded, want)
	}
}

func TestReadMultipleFrames(t *testing.T) {
	t.Parallel()
	var buffer bytes.Buffer
	frames := []Frame{
		{Type: TypeAuth, Payload: "token"},
		{Type: TypeReady},
		{Type: TypeEval, Payload: "set x 1"},
		{Type: TypeOK, Payload: "1"},
	}
	for _, f := range frames {
		if err := Write(&buffer, f); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	for index, want := range frames {
		got, err := Read(&buffer)
		if err != nil {
			t.Fatalf("Read[%d]: %v", index, err)
		}
		if got != want {
			t.Errorf("frame[%d]: got %+v, want %+v", index, got, want)
		}
	}
	if _, err := Read(&buffer); err != io.EOF {
		t.Errorf("after last frame: got %v, want io.EOF", err)
	}
}

func TestReadZeroLengthFrame(t *testing.T) {
	t.Parallel()
	got, err := Read(bytes.NewReader([]byte{0, 0, 0, 0}))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("got %+v, want empty frame", got)
	}
}

func TestReadCleanEOF(t *testing.T) {
	t.Parallel()
	_, err := Read(bytes.NewReader(nil))
	if err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestReadUnderflow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
	}{
		{name: "partial length prefix", data: []byte{0, 0}},
		{name: "partial body", data: []byte{0, 0, 0, 12, 'O', 'K', ' ', ' '}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := Read(bytes.NewReader(test.data))
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatalf("got %v, want io.ErrUnexpectedEOF", err)
			}
		})
	}
}

func TestReadMalformedLength(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		length uint32
	}{
		{name: "shorter than tag", length: 3},
		{name: "above maximum", length: MaxLength + 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var prefix [4]byte
			binary.BigEndian.PutUint32(prefix[:], test.length)
			_, err := Read(bytes.NewReader(prefix[:]))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("got %v, want ErrMalformed", err)
			}
		})
	}
}

func TestEncodeRejectsLongType(t *testing.T) {
	t.Parallel()
	_, err := Encode(Frame{Type: strings.Repeat("X", TypeLength+1)})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }

func TestWriteShortWrite(t *testing.T) {
	t.Parallel()
	err := Write(shortWriter{}, Frame{Type: TypePing})
	if !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("got %v, want io.ErrShortWrite", err)
	}
}
