// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/glyph/lib/clock"
	"github.com/bureau-foundation/glyph/lib/frame"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

var conversation = []struct {
	direction Direction
	frame     frame.Frame
}{
	{Sent, frame.Frame{Type: frame.TypeAuth, Payload: "secret"}},
	{Received, frame.Frame{Type: frame.TypeReady}},
	{Sent, frame.Frame{Type: frame.TypeEval, Payload: "pw::Application getVersion"}},
	{Received, frame.Frame{Type: frame.TypeOK, Payload: "Pointwise V18.4R1"}},
}

func TestCompressionFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Compression
	}{
		{"session.cbor", None},
		{"session", None},
		{"session.zst", Zstd},
		{"session.ZSTD", Zstd},
		{"/tmp/a/session.lz4", LZ4},
	}
	for _, test := range tests {
		if got := CompressionFor(test.path); got != test.want {
			t.Errorf("CompressionFor(%q) = %v, want %v", test.path, got, test.want)
		}
	}
}

func TestStreamRoundTrip(t *testing.T) {
	t.Parallel()

	for _, compression := range []Compression{None, Zstd, LZ4} {
		t.Run(compression.String(), func(t *testing.T) {
			t.Parallel()

			fake := clock.Fake(epoch)
			var buffer bytes.Buffer
			writer, err := NewWriter(&buffer, compression, fake)
			if err != nil {
				t.Fatalf("NewWriter: %v", err)
			}
			for _, entry := range conversation {
				if err := writer.Record(entry.direction, entry.frame); err != nil {
					t.Fatalf("Record: %v", err)
				}
				fake.Advance(time.Millisecond)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			reader, err := NewReader(&buffer, compression)
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			defer reader.Close()

			count := 0
			for record, err := range reader.All() {
				if err != nil {
					t.Fatalf("record %d: %v", count, err)
				}
				want := conversation[count]
				if record.Direction != want.direction || record.Frame() != want.frame {
					t.Errorf("record %d = %+v, want %v %+v", count, record, want.direction, want.frame)
				}
				if wantTime := epoch.Add(time.Duration(count) * time.Millisecond); !record.Time.Equal(wantTime) {
					t.Errorf("record %d time = %v, want %v", count, record.Time, wantTime)
				}
				count++
			}
			if count != len(conversation) {
				t.Errorf("read %d records, want %d", count, len(conversation))
			}
		})
	}
}

func TestCreateOpenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.zst")
	writer, err := Create(path, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := writer.Record(Sent, frame.Frame{Type: frame.TypePing}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := writer.Record(Sent, frame.Frame{Type: frame.TypePing}); err == nil {
		t.Error("Record after Close succeeded")
	}

	reader, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	record, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if record.Type != frame.TypePing || record.Direction != Sent {
		t.Errorf("record = %+v, want sent PING", record)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("Next at end = %v, want io.EOF", err)
	}
}

func TestRecordEncodingIsDeterministic(t *testing.T) {
	t.Parallel()

	stamp := epoch.Add(123456789 * time.Nanosecond)
	encode := func() []byte {
		var buffer bytes.Buffer
		writer, err := NewWriter(&buffer, None, clock.Fake(stamp))
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		for _, entry := range conversation {
			if err := writer.Record(entry.direction, entry.frame); err != nil {
				t.Fatalf("Record: %v", err)
			}
		}
		writer.Close()
		return buffer.Bytes()
	}

	first, second := encode(), encode()
	if !bytes.Equal(first, second) {
		t.Fatal("identical records encoded differently")
	}
	if !bytes.Contains(first, []byte("2026-05-04T10:00:00.123456789Z")) {
		t.Error("timestamp not written as RFC 3339 text with nanoseconds")
	}

	reader, err := NewReader(bytes.NewReader(first), None)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	record, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !record.Time.Equal(stamp) {
		t.Errorf("time = %v, want %v", record.Time, stamp)
	}
}

func TestReaderRejectsDuplicateKeys(t *testing.T) {
	t.Parallel()

	// {"type": "A", "type": "B"}
	data := []byte{0xa2, 0x64, 't', 'y', 'p', 'e', 0x61, 'A', 0x64, 't', 'y', 'p', 'e', 0x61, 'B'}
	reader, err := NewReader(bytes.NewReader(data), None)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := reader.Next(); err == nil || err == io.EOF {
		t.Errorf("Next on a record with a repeated key = %v, want a decode error", err)
	}
}
