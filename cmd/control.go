// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/internal/stats"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving locos and switching track power",
	Long: `Control a Z21 command station via an interactive terminal UI.

Features:
  - Track power and system state display
  - Loco table filled from LAN_X_LOCO_INFO broadcasts
  - Driving the selected loco (speed, direction, light)
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Keys:
  Tab        switch between loco list and drive panel
  a          enter a loco address
  up/down    select a loco (list) or change speed (drive panel)
  r          reverse direction
  l          toggle light (F0)
  e          emergency stop the selected loco
  p / o      track power on / off
  s          emergency stop all locos
  q          quit

Supports UDP, serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// connectionManager handles session lifecycle and reconnection
type connectionManager struct {
	ctx     context.Context
	stats   *stats.Statistics
	session *session
	mu      sync.RWMutex
	p       *tea.Program
	obs     chan client.Observation
}

func (cm *connectionManager) getClient() *client.Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.session == nil {
		return nil
	}
	return cm.session.client
}

func (cm *connectionManager) setSession(s *session) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.session = s
}

func runControl(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cm := &connectionManager{
		ctx:   ctx,
		stats: stats.NewStatistics(),
		obs:   make(chan client.Observation, 100),
	}

	// Open initial connection
	s, err := cm.open()
	if err != nil {
		return err
	}
	cm.setSession(s)

	// Create TUI model with connection manager
	m := initialControlModel(cm, s.client.String())

	// Create TUI program with alt screen
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	cm.p = p

	go cm.sessionLoop()
	go cm.batchLoop()

	_, runErr := p.Run()
	interrupted := ctx.Err() != nil
	cancel()

	cm.mu.Lock()
	if cm.session != nil {
		cm.session.Close()
	}
	cm.mu.Unlock()

	if runErr != nil && !interrupted {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}

// open starts a session feeding the observation channel and subscribes
func (cm *connectionManager) open() (*session, error) {
	s, err := startSession(cm.ctx, client.Options{Stats: cm.stats}, func(o client.Observation) {
		select {
		case cm.obs <- o:
		default:
			// TUI is behind; statistics still count the record
		}
	})
	if err != nil {
		return nil, err
	}

	for _, c := range []z21.Command{
		z21.NewSetBroadcastFlags(settings.BroadcastFlags | z21.DefaultBroadcastFlags),
		z21.GetStatus{},
		z21.GetSystemState{},
	} {
		if err := s.client.Send(cm.ctx, c); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// sessionLoop waits for the session to end and reconnects until shutdown
func (cm *connectionManager) sessionLoop() {
	for {
		cm.mu.RLock()
		s := cm.session
		cm.mu.RUnlock()

		err := s.Wait()
		if cm.ctx.Err() != nil {
			return
		}
		logger.Warn("session ended", zap.Error(err))

		cm.p.Send(connectionLostMsg{})
		s.Close()
		cm.setSession(nil)

		if !cm.reconnect() {
			return // Shutdown requested during reconnect
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.ctx.Done():
			return false
		case <-time.After(backoff):
		}

		s, err := cm.open()
		if err == nil {
			cm.setSession(s)
			cm.p.Send(reconnectedMsg{connInfo: s.client.String()})
			return true
		}
		logger.Debug("reconnect failed", zap.Error(err))

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// batchLoop sends batched observations to the TUI at a fixed rate
func (cm *connectionManager) batchLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			var batch controlBatchMsg

			// Drain all available observations
		drainLoop:
			for {
				select {
				case o := <-cm.obs:
					batch.observations = append(batch.observations, o)
				default:
					break drainLoop
				}
			}

			if len(batch.observations) > 0 {
				cm.p.Send(batch)
			}
		}
	}
}

// send returns a tea.Cmd that sends c and reports the outcome
func (cm *connectionManager) send(c z21.Command) tea.Cmd {
	return func() tea.Msg {
		cl := cm.getClient()
		if cl == nil {
			return commandResultMsg{command: c, err: fmt.Errorf("connection lost")}
		}
		return commandResultMsg{command: c, err: cl.Send(cm.ctx, c)}
	}
}
