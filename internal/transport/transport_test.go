// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/z21stat/pkg/z21"
)

var powerOn = []byte{0x07, 0x00, 0x40, 0x00, 0x21, 0x81, 0xA0}

// ============================================================
// Loopback
// ============================================================

func TestLoopback_SendReceive(t *testing.T) {
	a, b := NewLoopbackPair()
	ctx := context.Background()

	if err := a.Send(ctx, powerOn); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	got, err := b.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if !bytes.Equal(got, powerOn) {
		t.Errorf("Receive() = % X, want % X", got, powerOn)
	}
}

func TestLoopback_CopiesData(t *testing.T) {
	a, b := NewLoopbackPair()
	data := append([]byte(nil), powerOn...)
	_ = a.Send(context.Background(), data)
	data[0] = 0xFF

	got, _ := b.Receive(context.Background())
	if got[0] != 0x07 {
		t.Error("loopback shares the sender's buffer")
	}
}

func TestLoopback_ContextCancel(t *testing.T) {
	_, b := NewLoopbackPair()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := b.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive() error = %v, want deadline exceeded", err)
	}
}

func TestLoopback_Close(t *testing.T) {
	a, b := NewLoopbackPair()
	b.Close()

	if err := a.Send(context.Background(), powerOn); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() to closed peer error = %v", err)
	}
	if _, err := b.Receive(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive() on closed end error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// ============================================================
// UDP
// ============================================================

func TestUDP_RoundTrip(t *testing.T) {
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	defer server.Close()

	// Echo one datagram back to the sender
	go func() {
		buf := make([]byte, 1500)
		n, addr, err := server.ReadFromUDP(buf)
		if err != nil {
			return
		}
		server.WriteToUDP(buf[:n], addr)
	}()

	port := server.LocalAddr().(*net.UDPAddr).Port
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := DialUDP(ctx, "127.0.0.1", port)
	if err != nil {
		t.Fatalf("DialUDP() error: %v", err)
	}
	defer conn.Close()

	if !strings.HasPrefix(conn.String(), "UDP: 127.0.0.1:") {
		t.Errorf("String() = %q", conn.String())
	}

	if err := conn.Send(ctx, powerOn); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	got, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if !bytes.Equal(got, powerOn) {
		t.Errorf("Receive() = % X, want % X", got, powerOn)
	}
}

func TestUDP_ReceiveCancelled(t *testing.T) {
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	defer server.Close()

	conn, err := DialUDP(context.Background(), "127.0.0.1", server.LocalAddr().(*net.UDPAddr).Port)
	if err != nil {
		t.Fatalf("DialUDP() error: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	if _, err := conn.Receive(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Receive() error = %v, want context.Canceled", err)
	}

	// A fresh context must clear the forced deadline
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := conn.Receive(ctx2); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Receive() error = %v, want deadline exceeded", err)
	}
}

// ============================================================
// WebSocket
// ============================================================

func TestWebSocket_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotAuth string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		// A text frame must be skipped by the client
		c.WriteMessage(websocket.TextMessage, []byte("hello"))
		c.WriteMessage(websocket.BinaryMessage, data)
		c.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := DialWebSocket(ctx, WebSocketOptions{
		URL:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		Username: "admin",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("DialWebSocket() error: %v", err)
	}
	defer conn.Close()

	if err := conn.Send(ctx, powerOn); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	got, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if !bytes.Equal(got, powerOn) {
		t.Errorf("Receive() = % X, want % X", got, powerOn)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Basic YWRtaW46c2VjcmV0" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestWebSocket_PeerDropIsTerminal(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := DialWebSocket(ctx, WebSocketOptions{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	if err != nil {
		t.Fatalf("DialWebSocket() error: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Receive(ctx); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("Receive() error = %v, want ErrConnectionLost", err)
	}

	// gorilla/websocket panics on the 1000th read of a failed connection
	for i := 0; i < 1500; i++ {
		if _, err := conn.Receive(ctx); !errors.Is(err, ErrConnectionLost) {
			t.Fatalf("Receive() #%d error = %v, want ErrConnectionLost", i, err)
		}
	}
}

func TestWebSocket_RejectsScheme(t *testing.T) {
	_, err := DialWebSocket(context.Background(), WebSocketOptions{URL: "http://localhost/"})
	if err == nil || !strings.Contains(err.Error(), "unsupported URL scheme") {
		t.Errorf("DialWebSocket() error = %v", err)
	}
}

// ============================================================
// Serial
// ============================================================

// fakePort delivers queued chunks and reports (0, nil) when idle, like a
// serial port with a read timeout.
type fakePort struct {
	mu      sync.Mutex
	chunks  [][]byte
	readErr error // returned once the chunks run out
	written bytes.Buffer
	closed  bool
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chunks) == 0 && f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.chunks) == 0 {
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		f.mu.Lock()
		return 0, nil
	}
	n := copy(p, f.chunks[0])
	f.chunks[0] = f.chunks[0][n:]
	if len(f.chunks[0]) == 0 {
		f.chunks = f.chunks[1:]
	}
	return n, nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.Write(p)
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestSerial_ReassemblesRecords(t *testing.T) {
	off := z21.MustEncode(z21.SetTrackPowerOff{})
	stream := append(append([]byte(nil), powerOn...), off...)

	port := &fakePort{chunks: [][]byte{stream[:3], stream[3:9], stream[9:]}}
	conn := NewSerialConn(port, "fake")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, want := range [][]byte{powerOn, off} {
		got, err := conn.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive() error: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Receive() = % X, want % X", got, want)
		}
	}

	if err := conn.Send(ctx, powerOn); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !bytes.Equal(port.written.Bytes(), powerOn) {
		t.Errorf("written = % X", port.written.Bytes())
	}
}

func TestSerial_ReceiveCancelled(t *testing.T) {
	conn := NewSerialConn(&fakePort{}, "fake")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := conn.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive() error = %v, want deadline exceeded", err)
	}

	conn.Close()
	if _, err := conn.Receive(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive() after Close error = %v", err)
	}
}

func TestSerial_ReportsDiscardedBytes(t *testing.T) {
	off := []byte{0x07, 0x00, 0x40, 0x00, 0x61, 0x00, 0x61}
	port := &fakePort{chunks: [][]byte{append([]byte{0xFF, 0xFF}, off...)}}
	conn := NewSerialConn(port, "fake")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := conn.Receive(ctx)
	var streamErr *z21.StreamError
	if !errors.As(err, &streamErr) || !errors.Is(err, z21.ErrLengthMismatch) {
		t.Fatalf("first Receive() error = %v, want a length StreamError", err)
	}
	if !bytes.Equal(streamErr.Discarded, []byte{0xFF, 0xFF}) {
		t.Errorf("Discarded = % X, want FF FF", streamErr.Discarded)
	}

	got, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("second Receive() error: %v", err)
	}
	if !bytes.Equal(got, off) {
		t.Errorf("second Receive() = % X, want % X", got, off)
	}
}

func TestSerial_ReadErrorIsTerminal(t *testing.T) {
	unplugged := errors.New("device not configured")
	port := &fakePort{chunks: [][]byte{powerOn}, readErr: unplugged}
	conn := NewSerialConn(port, "fake")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := conn.Receive(ctx)
	if err != nil || !bytes.Equal(got, powerOn) {
		t.Fatalf("Receive() = % X, %v", got, err)
	}

	_, err = conn.Receive(ctx)
	if !errors.Is(err, ErrConnectionLost) || !errors.Is(err, unplugged) {
		t.Errorf("Receive() error = %v, want ErrConnectionLost wrapping the read error", err)
	}
	if _, err := conn.Receive(ctx); !errors.Is(err, ErrConnectionLost) {
		t.Errorf("Receive() after failure error = %v", err)
	}
}
