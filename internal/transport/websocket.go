// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketOptions configures DialWebSocket
type WebSocketOptions struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// WebSocketConn carries one record stream over a WebSocket bridge. Each
// binary message holds one datagram; other message types are skipped.
type WebSocketConn struct {
	conn    *websocket.Conn
	url     string
	writeMu sync.Mutex
	closed  atomic.Bool
	failed  atomic.Bool
}

// DialWebSocket opens a WebSocket connection with optional HTTP Basic auth
func DialWebSocket(ctx context.Context, opts WebSocketOptions) (*WebSocketConn, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, opts.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return NewWebSocketConn(conn, opts.URL), nil
}

// NewWebSocketConn wraps an established connection
func NewWebSocketConn(conn *websocket.Conn, name string) *WebSocketConn {
	return &WebSocketConn{conn: conn, url: name}
}

// Send writes one binary message
func (w *WebSocketConn) Send(ctx context.Context, data []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	_ = w.conn.SetWriteDeadline(deadline)
	if err := w.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("websocket send: %w", err)
	}
	return nil
}

// Receive returns the next binary message. Any read error, including one
// caused by ctx, leaves the connection unusable: later calls return
// ErrConnectionLost without touching the socket.
func (w *WebSocketConn) Receive(ctx context.Context) ([]byte, error) {
	if w.closed.Load() {
		return nil, ErrClosed
	}
	if w.failed.Load() {
		return nil, ErrConnectionLost
	}

	stop := interruptRead(ctx, w.conn)
	defer stop()

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// gorilla/websocket panics after repeated reads on a failed connection
			w.failed.Store(true)
			if w.closed.Load() {
				return nil, ErrClosed
			}
			return nil, readError(ctx, fmt.Errorf("websocket receive: %w: %w", ErrConnectionLost, err))
		}
		if messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close sends a close frame and closes the connection
func (w *WebSocketConn) Close() error {
	if w.closed.Swap(true) {
		return nil
	}

	w.writeMu.Lock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()

	return w.conn.Close()
}

func (w *WebSocketConn) String() string {
	return "WebSocket: " + w.url
}
