// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/Thermoquad/z21stat/pkg/z21"
)

// UDPConn talks to a command station over its native UDP transport.
// The socket is connected, so only datagrams from the station are received.
type UDPConn struct {
	conn   *net.UDPConn
	addr   string
	buf    []byte
	closed atomic.Bool
}

// DialUDP connects to host:port (port 0 selects z21.DefaultPort).
func DialUDP(ctx context.Context, host string, port int) (*UDPConn, error) {
	if port == 0 {
		port = z21.DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	return &UDPConn{
		conn: conn.(*net.UDPConn),
		addr: addr,
		buf:  make([]byte, z21.MaxRecordSize),
	}, nil
}

// Send writes one datagram
func (u *UDPConn) Send(ctx context.Context, data []byte) error {
	if u.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := u.conn.Write(data); err != nil {
		return fmt.Errorf("udp send: %w", err)
	}
	return nil
}

// Receive blocks until one datagram arrives or ctx ends. Receive must not be
// called concurrently with itself.
func (u *UDPConn) Receive(ctx context.Context) ([]byte, error) {
	if u.closed.Load() {
		return nil, ErrClosed
	}

	stop := interruptRead(ctx, u.conn)
	defer stop()

	n, err := u.conn.Read(u.buf)
	if err != nil {
		if u.closed.Load() {
			return nil, ErrClosed
		}
		return nil, readError(ctx, fmt.Errorf("udp receive: %w", err))
	}

	datagram := make([]byte, n)
	copy(datagram, u.buf[:n])
	return datagram, nil
}

// Close closes the socket
func (u *UDPConn) Close() error {
	if u.closed.Swap(true) {
		return nil
	}
	return u.conn.Close()
}

func (u *UDPConn) String() string {
	return "UDP: " + u.addr
}
