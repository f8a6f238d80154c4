// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/internal/transport"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

const (
	dialTimeout   = 15 * time.Second
	logoffTimeout = time.Second
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("Z21_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenConnection opens a WebSocket, serial or UDP connection based on settings.
// UDP is the default.
func OpenConnection(ctx context.Context) (transport.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if settings.URL != "" {
		// WebSocket mode
		password := ""
		if settings.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}

		return transport.DialWebSocket(ctx, transport.WebSocketOptions{
			URL:           settings.URL,
			Username:      settings.Username,
			Password:      password,
			SkipSSLVerify: wsNoSSLVerify,
		})
	}

	if settings.SerialPort != "" {
		return transport.OpenSerial(settings.SerialPort, settings.Baud)
	}

	if settings.Host == "" {
		return nil, fmt.Errorf("one of --host, --serial or --url must be specified")
	}
	return transport.DialUDP(ctx, settings.Host, settings.Port)
}

// session is a connected client with its receive loop running
type session struct {
	client  *client.Client
	cancel  context.CancelFunc
	stopped chan struct{}
	err     error
	once    sync.Once
}

// startSession connects and runs the client in the background. handler
// sees every dispatched record and may be nil.
func startSession(ctx context.Context, opts client.Options, handler func(client.Observation)) (*session, error) {
	conn, err := OpenConnection(ctx)
	if err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = logger
	}
	if opts.Keepalive == 0 {
		opts.Keepalive = settings.Keepalive
		if opts.Keepalive == 0 {
			opts.Keepalive = -1
		}
	}

	c, err := client.New(conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{client: c, cancel: cancel, stopped: make(chan struct{})}
	go func() {
		s.err = c.Run(runCtx, handler)
		close(s.stopped)
	}()

	logger.Debug("session started", zap.String("conn", c.String()))
	return s, nil
}

// Close logs off, closes the connection and waits for the receive loop.
// Only the first call has any effect.
func (s *session) Close() error {
	var err error
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), logoffTimeout)
		defer cancel()

		err = s.client.Close(ctx)
		s.cancel()
		<-s.stopped
	})
	return err
}

// Wait blocks until the receive loop ends. Cancellation is not an error.
func (s *session) Wait() error {
	<-s.stopped
	if errors.Is(s.err, context.Canceled) {
		return nil
	}
	return s.err
}

// request runs one command and waits for its reply on a fresh session.
// Replies to driving and switching commands arrive as broadcasts, so the
// session subscribes first.
func request(ctx context.Context, cmd z21.Command, match func(z21.Event) bool) (z21.Event, error) {
	s, err := startSession(ctx, client.Options{}, nil)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.client.Subscribe(ctx, settings.BroadcastFlags); err != nil {
		return nil, err
	}
	return s.client.Request(ctx, cmd, match)
}

// parseUint parses a decimal or 0x-prefixed argument
func parseUint(arg, what string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(arg, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", what, arg)
	}
	return v, nil
}
