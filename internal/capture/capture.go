// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw Z21 traffic to a file and reads it back.
//
// A capture is a CBOR sequence: one Header followed by any number of
// Records. Records hold the bytes exactly as they crossed the transport,
// so a replay runs them through the same dispatcher as live traffic.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Magic identifies a capture stream
const Magic = "z21cap"

// FormatVersion is the only capture layout this package writes
const FormatVersion = 1

// Direction of a captured record
type Direction uint8

const (
	Inbound  Direction = 0 // station to client
	Outbound Direction = 1 // client to station
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "in"
	case Outbound:
		return "out"
	default:
		return fmt.Sprintf("dir(%d)", uint8(d))
	}
}

// Header opens every capture
type Header struct {
	Magic   string `cbor:"1,keyasint"`
	Version int    `cbor:"2,keyasint"`
	Session string `cbor:"3,keyasint"`
	Started int64  `cbor:"4,keyasint"` // unix nanoseconds
	Source  string `cbor:"5,keyasint,omitempty"`
}

// StartTime returns Started as a time.Time
func (h Header) StartTime() time.Time {
	return time.Unix(0, h.Started)
}

// Record is one captured transport record
type Record struct {
	Time      int64     `cbor:"1,keyasint"` // unix nanoseconds
	Direction Direction `cbor:"2,keyasint"`
	Data      []byte    `cbor:"3,keyasint"`
}

// Timestamp returns Time as a time.Time
func (r Record) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// ErrNotCapture is returned when a stream does not start with a capture header
var ErrNotCapture = errors.New("not a z21 capture")

// Writer appends records to a capture. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	enc    *cbor.Encoder
	header Header
	count  int
}

// NewWriter writes a header with a fresh session id and returns the writer.
// source names the connection being captured and may be empty.
func NewWriter(w io.Writer, source string, now time.Time) (*Writer, error) {
	buf := bufio.NewWriter(w)
	cw := &Writer{
		buf: buf,
		enc: cbor.NewEncoder(buf),
		header: Header{
			Magic:   Magic,
			Version: FormatVersion,
			Session: uuid.NewString(),
			Started: now.UnixNano(),
			Source:  source,
		},
	}
	if err := cw.enc.Encode(cw.header); err != nil {
		return nil, fmt.Errorf("write capture header: %w", err)
	}
	return cw, nil
}

// Header returns the header written at the start of the capture
func (w *Writer) Header() Header {
	return w.header
}

// Write appends one record. data is copied into the encoder's output
// before Write returns.
func (w *Writer) Write(at time.Time, dir Direction, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(Record{Time: at.UnixNano(), Direction: dir, Data: data}); err != nil {
		return fmt.Errorf("write capture record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Flush pushes buffered records to the underlying writer
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// Reader iterates the records of a capture
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the capture header
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(bufio.NewReader(r))

	var h Header
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNotCapture
		}
		return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
	}
	if h.Magic != Magic {
		return nil, ErrNotCapture
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported capture version %d", h.Version)
	}
	return &Reader{dec: dec, header: h}, nil
}

// Header returns the capture header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF after the last one. A capture
// cut off mid-record returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, io.ErrUnexpectedEOF
		}
		return Record{}, fmt.Errorf("read capture record: %w", err)
	}
	return rec, nil
}
