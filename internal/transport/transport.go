// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport moves raw Z21 records between this process and a command
// station. It never inspects the bytes it carries.
package transport

import (
	"context"
	"errors"
	"time"
)

// Conn is a record-oriented connection to a command station.
//
// Receive returns one datagram (UDP, WebSocket) or one reassembled record
// (serial). Send and Receive may be called from different goroutines.
type Conn interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
	String() string
}

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("transport closed")

// ErrConnectionLost is returned by Receive once the peer or device has gone
// away. The Conn cannot recover and must be reopened.
var ErrConnectionLost = errors.New("connection lost")

// deadliner is the part of net.Conn and websocket.Conn used to interrupt a
// blocking read when the context ends.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// interruptRead arms the read deadline from ctx and forces it into the past
// when ctx is cancelled. The returned func disarms it.
func interruptRead(ctx context.Context, d deadliner) func() bool {
	deadline, _ := ctx.Deadline() // zero time clears a previous deadline
	_ = d.SetReadDeadline(deadline)

	return context.AfterFunc(ctx, func() {
		_ = d.SetReadDeadline(time.Now())
	})
}

// readError prefers the context's error over the timeout it caused.
func readError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// The socket deadline can fire before the context timer does
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return err
}
