// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/glyph/lib/clock"
	"github.com/bureau-foundation/glyph/lib/frame"
)

// Direction says which way a frame travelled, from the client's side.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Record is one journaled frame.
type Record struct {
	Time      time.Time `cbor:"time"`
	Direction Direction `cbor:"direction"`
	Type      string    `cbor:"type"`
	Payload   string    `cbor:"payload"`
}

// Frame returns the frame the record describes.
func (r Record) Frame() frame.Frame {
	return frame.Frame{Type: r.Type, Payload: r.Payload}
}

// Compression selects the stream compression of a journal file.
type Compression int

const (
	None Compression = iota
	Zstd
	LZ4
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// CompressionFor picks the compression implied by a file name.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	default:
		return None
	}
}

// flushWriteCloser is the common surface of the zstd and lz4 stream
// encoders.
type flushWriteCloser interface {
	io.WriteCloser
	Flush() error
}

// Writer appends records to a journal. It is safe for concurrent use.
type Writer struct {
	mu         sync.Mutex
	clock      clock.Clock
	encoder    *cbor.Encoder
	compressor flushWriteCloser
	file       *os.File
	closed     bool
}

// Create creates (or truncates) a journal file. The extension picks the
// compression. A nil clock means wall-clock time.
func Create(path string, clk clock.Clock) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating journal: %w", err)
	}
	writer, err := NewWriter(file, CompressionFor(path), clk)
	if err != nil {
		file.Close()
		return nil, err
	}
	writer.file = file
	return writer, nil
}

// NewWriter writes a journal to w. Close flushes the compressor but
// leaves w open.
func NewWriter(w io.Writer, compression Compression, clk clock.Clock) (*Writer, error) {
	writer := &Writer{clock: clock.OrReal(clk)}
	switch compression {
	case None:
		writer.encoder = encMode.NewEncoder(w)
		return writer, nil
	case Zstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("creating zstd journal stream: %w", err)
		}
		writer.compressor = encoder
	case LZ4:
		writer.compressor = lz4.NewWriter(w)
	default:
		return nil, fmt.Errorf("unknown journal compression %v", compression)
	}
	writer.encoder = encMode.NewEncoder(writer.compressor)
	return writer, nil
}

// Record appends one frame, stamped with the current time. The
// compressed stream is flushed after every record so a journal cut short
// by a crash is readable up to its last complete record.
func (w *Writer) Record(direction Direction, f frame.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("journal is closed")
	}
	record := Record{
		Time:      w.clock.Now(),
		Direction: direction,
		Type:      f.Type,
		Payload:   f.Payload,
	}
	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("writing journal record: %w", err)
	}
	if w.compressor != nil {
		if err := w.compressor.Flush(); err != nil {
			return fmt.Errorf("flushing journal: %w", err)
		}
	}
	return nil
}

// Close finishes the compressed stream and closes the file if Create
// opened it. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.compressor != nil {
		errs = append(errs, w.compressor.Close())
	}
	if w.file != nil {
		errs = append(errs, w.file.Close())
	}
	return errors.Join(errs...)
}

// Reader reads records back from a journal.
type Reader struct {
	decoder *cbor.Decoder
	release func()
	file    *os.File
}

// Open opens a journal file, choosing decompression by extension.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	reader, err := NewReader(file, CompressionFor(path))
	if err != nil {
		file.Close()
		return nil, err
	}
	reader.file = file
	return reader, nil
}

// NewReader reads a journal from r.
func NewReader(r io.Reader, compression Compression) (*Reader, error) {
	reader := &Reader{}
	switch compression {
	case None:
	case Zstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening zstd journal stream: %w", err)
		}
		reader.release = decoder.Close
		r = decoder
	case LZ4:
		r = lz4.NewReader(r)
	default:
		return nil, fmt.Errorf("unknown journal compression %v", compression)
	}
	reader.decoder = decMode.NewDecoder(r)
	return reader, nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var record Record
	if err := r.decoder.Decode(&record); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("reading journal record: %w", err)
	}
	return record, nil
}

// All yields every remaining record. Iteration stops after the first
// error, which is yielded with a zero Record.
func (r *Reader) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			record, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(record, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the decompressor and closes the file if Open opened it.
func (r *Reader) Close() error {
	if r.release != nil {
		r.release()
		r.release = nil
	}
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
