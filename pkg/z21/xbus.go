// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import "fmt"

// XBusFrame is the payload of a LAN_X envelope:
// X-Header(1) | DB0..DBn | XOR(1)
type XBusFrame struct {
	Header   byte
	Data     []byte
	Checksum byte
}

// XORChecksum folds the given bytes with XOR. The empty fold is 0.
func XORChecksum(data ...byte) byte {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return x
}

// EncodeXBus builds an X-Bus payload with its trailing checksum.
func EncodeXBus(xHeader byte, data ...byte) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, xHeader)
	out = append(out, data...)
	return append(out, XORChecksum(out...))
}

// DecodeXBus splits an X-Bus payload and verifies its checksum.
func DecodeXBus(payload []byte) (XBusFrame, error) {
	if len(payload) < 2 {
		return XBusFrame{}, fmt.Errorf("%w: X-Bus payload of %d bytes", ErrTruncatedFrame, len(payload))
	}

	last := len(payload) - 1
	received := payload[last]
	calculated := XORChecksum(payload[:last]...)
	if received != calculated {
		return XBusFrame{}, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksumMismatch, calculated, received)
	}

	data := make([]byte, last-1)
	copy(data, payload[1:last])

	return XBusFrame{
		Header:   payload[0],
		Data:     data,
		Checksum: received,
	}, nil
}

// encodeXBusRecord wraps an X-Bus payload in a LAN_X envelope.
func encodeXBusRecord(xHeader byte, data ...byte) []byte {
	return EncodeEnvelope(HeaderXBus, EncodeXBus(xHeader, data...))
}
