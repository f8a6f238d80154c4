// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"sync"
)

const loopbackQueue = 64

// Loopback is one end of an in-memory datagram pipe. What one end sends,
// the other receives.
type Loopback struct {
	name  string
	inbox chan []byte
	peer  *Loopback
	done  chan struct{}
	once  sync.Once
}

// NewLoopbackPair returns two connected ends
func NewLoopbackPair() (*Loopback, *Loopback) {
	a := &Loopback{name: "a", inbox: make(chan []byte, loopbackQueue), done: make(chan struct{})}
	b := &Loopback{name: "b", inbox: make(chan []byte, loopbackQueue), done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// Send queues a copy of data on the peer
func (l *Loopback) Send(ctx context.Context, data []byte) error {
	datagram := make([]byte, len(data))
	copy(datagram, data)

	select {
	case <-l.done:
		return ErrClosed
	case <-l.peer.done:
		return ErrClosed
	default:
	}

	select {
	case l.peer.inbox <- datagram:
		return nil
	case <-l.done:
		return ErrClosed
	case <-l.peer.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next datagram sent by the peer
func (l *Loopback) Receive(ctx context.Context) ([]byte, error) {
	select {
	case datagram := <-l.inbox:
		return datagram, nil
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes this end; the peer sees ErrClosed on its next Send
func (l *Loopback) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *Loopback) String() string {
	return "Loopback: " + l.name
}
