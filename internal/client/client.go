// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package client runs a session with a Z21 command station over any
// transport: it sends commands, dispatches received records, keeps the
// session alive and correlates replies with requests.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/z21stat/internal/capture"
	"github.com/Thermoquad/z21stat/internal/stats"
	"github.com/Thermoquad/z21stat/internal/transport"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

// Defaults for Options fields left at zero
const (
	DefaultKeepalive      = 30 * time.Second
	DefaultRequestTimeout = 2 * time.Second
	DefaultLocoCacheSize  = 128
)

// retry delay after a transient receive error
const receiveBackoff = 100 * time.Millisecond

// ErrNoReply is returned by Request when no matching event arrives in time
var ErrNoReply = errors.New("no reply from command station")

// ErrRunning is returned by Run when the client is already running
var ErrRunning = errors.New("client already running")

// Observation is one dispatched record
type Observation struct {
	Time  time.Time
	Raw   []byte
	Event z21.Event
}

// Options configure a Client. All fields are optional.
type Options struct {
	Logger         *zap.Logger
	Stats          *stats.Statistics
	Capture        *capture.Writer
	Keepalive      time.Duration // negative disables keepalive
	RequestTimeout time.Duration
	LocoCacheSize  int
}

// Client is a session with one command station
type Client struct {
	conn      transport.Conn
	log       *zap.Logger
	stats     *stats.Statistics
	capture   *capture.Writer
	locos     *LocoTable
	keepalive time.Duration
	timeout   time.Duration

	mu      sync.Mutex
	running bool
	waiters map[uint64]*waiter
	nextID  uint64
}

type waiter struct {
	match func(z21.Event) bool
	ch    chan z21.Event
}

// New creates a client on conn. The client owns conn from here on.
func New(conn transport.Conn, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewStatistics()
	}
	if opts.Keepalive == 0 {
		opts.Keepalive = DefaultKeepalive
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.LocoCacheSize <= 0 {
		opts.LocoCacheSize = DefaultLocoCacheSize
	}

	locos, err := NewLocoTable(opts.LocoCacheSize)
	if err != nil {
		return nil, err
	}

	return &Client{
		conn:      conn,
		log:       opts.Logger.With(zap.String("conn", conn.String())),
		stats:     opts.Stats,
		capture:   opts.Capture,
		locos:     locos,
		keepalive: opts.Keepalive,
		timeout:   opts.RequestTimeout,
		waiters:   make(map[uint64]*waiter),
	}, nil
}

// Stats returns the statistics tracker
func (c *Client) Stats() *stats.Statistics {
	return c.stats
}

// Locos returns the loco table filled from LAN_X_LOCO_INFO events
func (c *Client) Locos() *LocoTable {
	return c.locos
}

// String names the underlying connection
func (c *Client) String() string {
	return c.conn.String()
}

// Send encodes cmd and writes it to the transport
func (c *Client) Send(ctx context.Context, cmd z21.Command) error {
	data, err := z21.Encode(cmd)
	if err != nil {
		return err
	}
	if err := c.conn.Send(ctx, data); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Name(), err)
	}

	c.stats.RecordSent(cmd)
	c.record(capture.Outbound, data)
	c.log.Debug("sent", zap.String("command", cmd.Name()), zap.Binary("data", data))
	return nil
}

// Subscribe sets the broadcast flags for this session
func (c *Client) Subscribe(ctx context.Context, flags uint32) error {
	return c.Send(ctx, z21.NewSetBroadcastFlags(flags))
}

// Request sends cmd and returns the first event for which match returns
// true. Run must be active in another goroutine.
func (c *Client) Request(ctx context.Context, cmd z21.Command, match func(z21.Event) bool) (z21.Event, error) {
	// Register before sending so a fast reply is not missed
	id, w := c.addWaiter(match)
	defer c.removeWaiter(id)

	if err := c.Send(ctx, cmd); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case ev := <-w.ch:
		return ev, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s: %w", cmd.Name(), ErrNoReply)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run receives and dispatches records until ctx ends or the transport is
// closed or lost. handler may be nil. Run returns ctx.Err() when cancelled,
// and the transport error otherwise.
func (c *Client) Run(ctx context.Context, handler func(Observation)) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrRunning
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.keepalive > 0 {
		go c.keepaliveLoop(runCtx)
	}

	for {
		datagram, err := c.conn.Receive(runCtx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, transport.ErrClosed) {
				c.log.Info("connection closed")
				return err
			}
			if errors.Is(err, transport.ErrConnectionLost) {
				c.log.Error("connection lost", zap.Error(err))
				return err
			}

			// Stream transports report bytes they could not frame
			var streamErr *z21.StreamError
			if errors.As(err, &streamErr) {
				c.observe(time.Now(), streamErr.Discarded, z21.InvalidMessage{Reason: streamErr.Err, Raw: streamErr.Discarded}, handler)
				continue
			}

			c.log.Error("receive failed", zap.Error(err))
			select {
			case <-runCtx.Done():
				return ctx.Err()
			case <-time.After(receiveBackoff):
			}
			continue
		}

		now := time.Now()
		c.record(capture.Inbound, datagram)
		c.handleDatagram(now, datagram, handler)
	}
}

// handleDatagram dispatches every record in one received datagram
func (c *Client) handleDatagram(now time.Time, datagram []byte, handler func(Observation)) {
	records, err := z21.SplitRecords(datagram)
	if err != nil {
		c.log.Warn("malformed datagram", zap.Error(err), zap.Binary("data", datagram))
	}

	for _, raw := range records {
		c.observe(now, raw, z21.Dispatch(raw), handler)
	}
}

// observe counts, logs and delivers one event
func (c *Client) observe(now time.Time, raw []byte, ev z21.Event, handler func(Observation)) {
	c.stats.Update(ev)

	switch ev := ev.(type) {
	case z21.InvalidMessage:
		c.log.Warn("invalid record",
			zap.String("reason", z21.FormatReason(ev.Reason)),
			zap.Error(ev.Reason),
			zap.Binary("data", raw))
	case z21.UnrecognizedMessage:
		c.log.Debug("unrecognized record", zap.Binary("data", raw))
	case z21.LocoInfo:
		c.locos.Update(ev)
	}

	c.deliver(ev)
	if handler != nil {
		handler(Observation{Time: now, Raw: raw, Event: ev})
	}
}

func (c *Client) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(c.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Send(ctx, z21.GetSerialNumber{}); err != nil && ctx.Err() == nil {
				c.log.Error("keepalive failed", zap.Error(err))
			}
		}
	}
}

// Close logs off from the command station and closes the transport. The
// logoff is best effort.
func (c *Client) Close(ctx context.Context) error {
	if err := c.Send(ctx, z21.LogOff{}); err != nil {
		c.log.Debug("logoff failed", zap.Error(err))
	}
	if c.capture != nil {
		if err := c.capture.Flush(); err != nil {
			c.log.Error("flush capture", zap.Error(err))
		}
	}
	return c.conn.Close()
}

func (c *Client) record(dir capture.Direction, data []byte) {
	if c.capture == nil {
		return
	}
	if err := c.capture.Write(time.Now(), dir, data); err != nil {
		c.log.Error("capture write failed", zap.Error(err))
	}
}

func (c *Client) addWaiter(match func(z21.Event) bool) (uint64, *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	w := &waiter{match: match, ch: make(chan z21.Event, 1)}
	c.waiters[c.nextID] = w
	return c.nextID, w
}

func (c *Client) removeWaiter(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiters, id)
}

// deliver hands ev to every waiter it matches. A waiter takes one event.
func (c *Client) deliver(ev z21.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, w := range c.waiters {
		if w.match != nil && !w.match(ev) {
			continue
		}
		select {
		case w.ch <- ev:
		default:
		}
		delete(c.waiters, id)
	}
}
