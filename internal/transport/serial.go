// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/Thermoquad/z21stat/pkg/z21"
)

// serialPollInterval bounds how long a Receive may miss a cancelled context.
const serialPollInterval = 100 * time.Millisecond

// SerialConn carries the LAN protocol over a serial line, as spoken by
// Z21 emulators on USB. Records are reassembled with z21.StreamDecoder.
type SerialConn struct {
	port    io.ReadWriteCloser
	name    string
	decoder *z21.StreamDecoder
	pending []serialItem
	buf     []byte
	writeMu sync.Mutex
	closed  atomic.Bool
	failed  atomic.Bool
}

// serialItem is a reassembled record or the error for discarded bytes, kept
// in stream order
type serialItem struct {
	record []byte
	err    error
}

// OpenSerial opens a serial port at 8N1
func OpenSerial(portName string, baudRate int) (*SerialConn, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(serialPollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return NewSerialConn(port, fmt.Sprintf("%s @ %d baud", portName, baudRate)), nil
}

// NewSerialConn wraps any byte stream. A Read that returns (0, nil) is taken
// as a poll timeout.
func NewSerialConn(port io.ReadWriteCloser, name string) *SerialConn {
	return &SerialConn{
		port:    port,
		name:    name,
		decoder: z21.NewStreamDecoder(),
		buf:     make([]byte, 256),
	}
}

// Send writes one record
func (s *SerialConn) Send(ctx context.Context, data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.port.Write(data); err != nil {
		return fmt.Errorf("serial send: %w", err)
	}
	return nil
}

// Receive returns the next complete record. Bytes that cannot start a record
// are reported as a *z21.StreamError, after which the connection remains
// usable. A read error from the port is terminal and wraps ErrConnectionLost.
// Receive must not be called concurrently with itself.
func (s *SerialConn) Receive(ctx context.Context) ([]byte, error) {
	for len(s.pending) == 0 {
		if s.closed.Load() {
			return nil, ErrClosed
		}
		if s.failed.Load() {
			return nil, ErrConnectionLost
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.port.Read(s.buf)
		for _, b := range s.buf[:n] {
			record, decodeErr := s.decoder.DecodeByte(b)
			if decodeErr != nil {
				s.pending = append(s.pending, serialItem{err: fmt.Errorf("serial receive: %w", decodeErr)})
			} else if record != nil {
				s.pending = append(s.pending, serialItem{record: record})
			}
		}
		if err != nil {
			if s.closed.Load() {
				return nil, ErrClosed
			}
			// An unplugged device keeps failing; records already read are
			// still delivered first
			s.failed.Store(true)
			if len(s.pending) == 0 {
				return nil, fmt.Errorf("serial receive: %w: %w", ErrConnectionLost, err)
			}
		}
	}

	item := s.pending[0]
	s.pending = s.pending[1:]
	return item.record, item.err
}

// Close closes the port
func (s *SerialConn) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.port.Close()
}

func (s *SerialConn) String() string {
	return "Serial: " + s.name
}
