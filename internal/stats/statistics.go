// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package stats tracks record statistics and error rates.
package stats

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/z21stat/pkg/z21"
)

// Counters is a point-in-time copy of the statistics.
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Inbound
	TotalRecords     uint64
	ValidRecords     uint64
	Unrecognized     uint64
	ChecksumErrors   uint64
	TruncatedFrames  uint64
	LengthMismatches uint64
	PayloadErrors    uint64 // wrong payload size or field value
	OtherErrors      uint64

	// Outbound
	SentCommands uint64

	// Per event name
	Events map[string]uint64

	// Rates (calculated)
	RecordRate float64 // records/sec
	ErrorRate  float64 // errors/sec
}

// Errors returns the number of records that failed validation
func (c Counters) Errors() uint64 {
	return c.ChecksumErrors + c.TruncatedFrames + c.LengthMismatches + c.PayloadErrors + c.OtherErrors
}

// Statistics tracks record statistics and error rates. It is safe for
// concurrent use.
type Statistics struct {
	mu      sync.Mutex
	c       Counters
	metrics *Metrics
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		c: Counters{
			StartTime:      now,
			LastUpdateTime: now,
			Events:         make(map[string]uint64),
		},
	}
}

// SetMetrics mirrors every update into Prometheus counters
func (s *Statistics) SetMetrics(m *Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Update counts one dispatched record
func (s *Statistics) Update(ev z21.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.TotalRecords++
	s.c.Events[ev.Name()]++
	s.c.LastUpdateTime = time.Now()

	switch ev := ev.(type) {
	case z21.InvalidMessage:
		switch {
		case errors.Is(ev.Reason, z21.ErrChecksumMismatch):
			s.c.ChecksumErrors++
		case errors.Is(ev.Reason, z21.ErrTruncatedFrame):
			s.c.TruncatedFrames++
		case errors.Is(ev.Reason, z21.ErrLengthMismatch):
			s.c.LengthMismatches++
		case errors.Is(ev.Reason, z21.ErrPayloadLength), errors.Is(ev.Reason, z21.ErrFieldValue):
			s.c.PayloadErrors++
		default:
			s.c.OtherErrors++
		}
		s.metrics.recordInvalid(z21.FormatReason(ev.Reason))
	case z21.UnrecognizedMessage:
		s.c.Unrecognized++
		s.metrics.recordEvent(ev.Name())
	default:
		s.c.ValidRecords++
		s.metrics.recordEvent(ev.Name())
	}
}

// RecordSent counts one outbound command
func (s *Statistics) RecordSent(c z21.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.SentCommands++
	s.metrics.recordSent(c.Name())
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calculateRates()
	snap := s.c
	snap.Events = make(map[string]uint64, len(s.c.Events))
	for k, v := range s.c.Events {
		snap.Events[k] = v
	}
	return snap
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.c.StartTime).Seconds()
	if elapsed > 0 {
		s.c.RecordRate = float64(s.c.TotalRecords) / elapsed
		s.c.ErrorRate = float64(s.c.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	c := s.Snapshot()

	percent := func(n uint64) float64 {
		if c.TotalRecords == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(c.TotalRecords)
	}

	elapsed := time.Since(c.StartTime)

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&b, "Total Records:   %8d\n", c.TotalRecords)
	fmt.Fprintf(&b, "Valid Records:   %8d (%.1f%%)\n", c.ValidRecords, percent(c.ValidRecords))

	if c.Unrecognized > 0 {
		fmt.Fprintf(&b, "Unrecognized:    %8d (%.1f%%)\n", c.Unrecognized, percent(c.Unrecognized))
	}
	if c.ChecksumErrors > 0 {
		fmt.Fprintf(&b, "Checksum Errors: %8d (%.1f%%)\n", c.ChecksumErrors, percent(c.ChecksumErrors))
	}
	if c.TruncatedFrames > 0 {
		fmt.Fprintf(&b, "Truncated:       %8d (%.1f%%)\n", c.TruncatedFrames, percent(c.TruncatedFrames))
	}
	if c.LengthMismatches > 0 {
		fmt.Fprintf(&b, "Length Mismatch: %8d (%.1f%%)\n", c.LengthMismatches, percent(c.LengthMismatches))
	}
	if c.PayloadErrors > 0 {
		fmt.Fprintf(&b, "Malformed:       %8d (%.1f%%)\n", c.PayloadErrors, percent(c.PayloadErrors))
	}
	if c.OtherErrors > 0 {
		fmt.Fprintf(&b, "Other Errors:    %8d (%.1f%%)\n", c.OtherErrors, percent(c.OtherErrors))
	}
	if c.SentCommands > 0 {
		fmt.Fprintf(&b, "Sent Commands:   %8d\n", c.SentCommands)
	}

	if len(c.Events) > 0 {
		names := make([]string, 0, len(c.Events))
		for name := range c.Events {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("By Event:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "  %-30s %6d\n", name, c.Events[name])
		}
	}

	fmt.Fprintf(&b, "Record Rate:     %8.1f records/sec\n", c.RecordRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	b.WriteString("================================\n")

	return b.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.c = Counters{
		StartTime:      now,
		LastUpdateTime: now,
		Events:         make(map[string]uint64),
	}
}
