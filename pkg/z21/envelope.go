// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"encoding/binary"
	"fmt"
)

// Envelope is the outer frame shared by every Z21 datagram:
// DataLen(2, LE) | Header(2, LE) | Payload
type Envelope struct {
	Length  uint16
	Header  uint16
	Payload []byte
}

// EncodeEnvelope prepends the length and header fields to payload.
func EncodeEnvelope(header uint16, payload []byte) []byte {
	data := make([]byte, EnvelopeHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(data[0:2], uint16(len(data)))
	binary.LittleEndian.PutUint16(data[2:4], header)
	copy(data[EnvelopeHeaderSize:], payload)
	return data
}

// DecodeEnvelope validates and splits exactly one record.
// The declared length must match len(raw); concatenated records are split
// with SplitRecords first.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	if len(raw) < EnvelopeHeaderSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncatedFrame, len(raw), EnvelopeHeaderSize)
	}

	length := binary.LittleEndian.Uint16(raw[0:2])
	if len(raw) < int(length) {
		return Envelope{}, fmt.Errorf("%w: declared %d bytes, received %d", ErrTruncatedFrame, length, len(raw))
	}
	if int(length) != len(raw) {
		return Envelope{}, fmt.Errorf("%w: declared %d bytes, received %d", ErrLengthMismatch, length, len(raw))
	}

	payload := make([]byte, len(raw)-EnvelopeHeaderSize)
	copy(payload, raw[EnvelopeHeaderSize:])

	return Envelope{
		Length:  length,
		Header:  binary.LittleEndian.Uint16(raw[2:4]),
		Payload: payload,
	}, nil
}
