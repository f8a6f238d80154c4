// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters mirrored from Statistics
type Metrics struct {
	RecordsTotal  *prometheus.CounterVec
	InvalidTotal  *prometheus.CounterVec
	CommandsTotal *prometheus.CounterVec
}

// NewMetrics registers the z21stat counters on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "z21stat_records_total",
				Help: "Total inbound records by event",
			},
			[]string{"event"},
		),
		InvalidTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "z21stat_invalid_records_total",
				Help: "Total inbound records that failed validation",
			},
			[]string{"reason"},
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "z21stat_commands_total",
				Help: "Total commands sent",
			},
			[]string{"command"},
		),
	}
}

func (m *Metrics) recordEvent(name string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) recordInvalid(reason string) {
	if m == nil {
		return
	}
	m.InvalidTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordSent(command string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command).Inc()
}
