// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/z21stat/internal/capture"
	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/internal/stats"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var (
	showRaw            bool
	errorsOnly         bool
	monitorRecord      string
	monitorMetricsAddr string
	statsInterval      int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display received Z21 messages in human-readable format",
	Long: `Subscribe to broadcasts and continuously decode and display Z21 messages as
they arrive.

Each record is shown with timestamp, message name and decoded fields.
Malformed records are highlighted with the reason they were rejected, and
periodic statistics summaries are displayed at a configurable interval.

Use --record to save the raw traffic to a capture file for later replay,
and --metrics-addr to expose Prometheus counters over HTTP.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showRaw, "raw", false, "Show a hex dump of every record")
	monitorCmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Show only invalid and unrecognized records")
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "Write raw traffic to a capture file")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 0, "Statistics update interval in seconds (0 disables)")
	monitorCmd.Flags().StringVar(&monitorMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9121")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	statistics := stats.NewStatistics()
	opts := client.Options{Stats: statistics}

	metricsAddr := monitorMetricsAddr
	if metricsAddr == "" {
		metricsAddr = settings.MetricsAddr
	}
	if metricsAddr != "" {
		stop, err := serveMetrics(metricsAddr, statistics)
		if err != nil {
			return err
		}
		defer stop()
	}

	if monitorRecord != "" {
		f, err := os.Create(monitorRecord)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		defer f.Close()
		w, err := capture.NewWriter(f, connectionName(), time.Now())
		if err != nil {
			return err
		}
		opts.Capture = w
		defer w.Flush()
	}

	s, err := startSession(ctx, opts, printObservation)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("z21stat - Monitor\n")
	fmt.Printf("Connection: %s\n", s.client)
	if monitorRecord != "" {
		fmt.Printf("Recording: %s (session %s)\n", monitorRecord, opts.Capture.Header().Session)
	}
	if metricsAddr != "" {
		fmt.Printf("Metrics: http://%s/metrics\n", metricsAddr)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := s.client.Subscribe(ctx, settings.BroadcastFlags); err != nil {
		return err
	}

	var statsTick <-chan time.Time
	if statsInterval > 0 {
		ticker := time.NewTicker(time.Duration(statsInterval) * time.Second)
		defer ticker.Stop()
		statsTick = ticker.C
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- s.Wait() }()

	for {
		select {
		case <-statsTick:
			fmt.Println()
			fmt.Print(statistics.String())
			fmt.Println()

		case err := <-waitErr:
			fmt.Println()
			fmt.Print(statistics.String())
			return err
		}
	}
}

// printObservation prints one record according to the monitor flags
func printObservation(o client.Observation) {
	timestamp := o.Time.Format("15:04:05.000")

	switch ev := o.Event.(type) {
	case z21.InvalidMessage:
		fmt.Printf("[%s] \033[1;31mINVALID:\033[0m %v\n", timestamp, ev.Reason)
		fmt.Printf("  Data: %s\n", z21.FormatHex(ev.Raw))
		fmt.Printf("  >>> RECORD REJECTED <<<\n\n")
		return

	case z21.UnrecognizedMessage:
		header := uint16(0)
		if len(ev.Raw) >= 4 {
			header = uint16(ev.Raw[2]) | uint16(ev.Raw[3])<<8
		}
		fmt.Printf("[%s] \033[1;33mUNRECOGNIZED:\033[0m %s (0x%04X)\n", timestamp, z21.FormatHeader(header), header)
		fmt.Printf("  Data: %s\n\n", z21.FormatHex(ev.Raw))
		return
	}

	if errorsOnly {
		return
	}
	fmt.Printf("[%s] %s\n", timestamp, z21.FormatEvent(o.Event))
	if showRaw {
		fmt.Printf("  Data: %s\n", z21.FormatHex(o.Raw))
	}
}

// serveMetrics exposes the statistics counters for Prometheus
func serveMetrics(addr string, statistics *stats.Statistics) (func(), error) {
	reg := prometheus.NewRegistry()
	statistics.SetMetrics(stats.NewMetrics(reg))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

// connectionName describes the configured connection before it is opened
func connectionName() string {
	switch {
	case settings.URL != "":
		return "WebSocket: " + settings.URL
	case settings.SerialPort != "":
		return fmt.Sprintf("Serial: %s @ %d baud", settings.SerialPort, settings.Baud)
	default:
		port := settings.Port
		if port == 0 {
			port = z21.DefaultPort
		}
		return fmt.Sprintf("UDP: %s:%d", settings.Host, port)
	}
}
