// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"encoding/binary"
	"fmt"
)

// MaxStreamRecordSize bounds the records StreamDecoder accepts. Larger
// declared lengths are treated as line noise.
const MaxStreamRecordSize = 1024

// SplitRecords splits a datagram into its records. A command station may
// pack several records into one UDP datagram.
//
// No bytes are dropped: when the datagram ends in a malformed record, the
// remaining bytes are returned as the last element together with the error,
// so Dispatch can still report them as InvalidMessage.
func SplitRecords(datagram []byte) ([][]byte, error) {
	if len(datagram) == 0 {
		return nil, fmt.Errorf("%w: empty datagram", ErrTruncatedFrame)
	}

	var records [][]byte
	for offset := 0; offset < len(datagram); {
		rest := datagram[offset:]
		if len(rest) < EnvelopeHeaderSize {
			return append(records, rest), fmt.Errorf("%w: %d trailing bytes at offset %d", ErrTruncatedFrame, len(rest), offset)
		}

		length := int(binary.LittleEndian.Uint16(rest[0:2]))
		if length < EnvelopeHeaderSize {
			return append(records, rest), fmt.Errorf("%w: declared %d bytes at offset %d", ErrLengthMismatch, length, offset)
		}
		if length > len(rest) {
			return append(records, rest), fmt.Errorf("%w: declared %d bytes, %d left at offset %d", ErrTruncatedFrame, length, len(rest), offset)
		}

		records = append(records, rest[:length:length])
		offset += length
	}

	return records, nil
}

// StreamError reports bytes the stream decoder discarded because they could
// not start a record. It unwraps to ErrLengthMismatch.
type StreamError struct {
	Discarded []byte
	Err       error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%v (discarded % X)", e.Err, e.Discarded)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Stream decoder states
const (
	streamLengthLow = iota
	streamLengthHigh
	streamBody
)

// StreamDecoder reassembles records from a byte stream such as a serial
// line, where record boundaries are only known from the length field.
type StreamDecoder struct {
	state  int
	length int
	buffer []byte
}

// NewStreamDecoder creates a new stream decoder
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{
		buffer: make([]byte, 0, MaxStreamRecordSize),
	}
}

// Reset discards any partial record
func (d *StreamDecoder) Reset() {
	d.state = streamLengthLow
	d.length = 0
	d.buffer = d.buffer[:0]
}

// Buffered returns the bytes of the partial record received so far
func (d *StreamDecoder) Buffered() []byte {
	return d.buffer
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed record, or nil if the record is incomplete.
// Returns a *StreamError and resets if the declared length is out of range.
func (d *StreamDecoder) DecodeByte(b byte) ([]byte, error) {
	d.buffer = append(d.buffer, b)

	switch d.state {
	case streamLengthLow:
		d.length = int(b)
		d.state = streamLengthHigh
		return nil, nil

	case streamLengthHigh:
		d.length |= int(b) << 8
		if d.length < EnvelopeHeaderSize || d.length > MaxStreamRecordSize {
			err := &StreamError{
				Discarded: cloneBytes(d.buffer),
				Err:       fmt.Errorf("%w: declared record length %d", ErrLengthMismatch, d.length),
			}
			d.Reset()
			return nil, err
		}
		d.state = streamBody
		return nil, nil

	case streamBody:
		if len(d.buffer) < d.length {
			return nil, nil
		}
		record := cloneBytes(d.buffer)
		d.Reset()
		return record, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid stream decoder state: %d", d.state)
	}
}

// Decode feeds p through DecodeByte and returns every record it completes.
// Length errors are collected and decoding continues with the next byte.
func (d *StreamDecoder) Decode(p []byte) (records [][]byte, errs []error) {
	for _, b := range p {
		record, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if record != nil {
			records = append(records, record)
		}
	}
	return records, errs
}
