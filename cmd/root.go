// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/z21stat/internal/config"
	"github.com/Thermoquad/z21stat/internal/logging"
)

var (
	configPath string
	logLevel   string

	// UDP connection flags
	host    string
	udpPort int

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

// Resolved by the root command before any subcommand runs
var (
	settings config.Config
	logger   = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "z21stat",
	Short: "Z21 LAN Protocol Monitor and Controller",
	Long: `z21stat - A CLI tool for monitoring and driving a Z21 digital command station.

Decodes the Z21 LAN protocol, reports broadcasts and replies as they arrive,
and sends track power, loco, turnout and feedback commands.

Connection modes:
  UDP:       --host 192.168.0.111 [--port 21105]  (default)
  Serial:    --serial /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings are read from $HOME/.config/z21stat/config.toml when it exists, or
from --config. Flags override the file.

For WebSocket authentication, the password is read from the Z21_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $HOME/.config/z21stat/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	// UDP connection flags
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Command station host (UDP)")
	rootCmd.PersistentFlags().IntVarP(&udpPort, "port", "p", 0, "UDP port (default 21105)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "serial", "s", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadSettings reads the config file and applies flags set on the command line
func loadSettings(cmd *cobra.Command, args []string) error {
	path, optional := configPath, false
	if path == "" {
		path, optional = config.DefaultPath(), true
	}

	cfg, err := config.Load(path, optional)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = host
	}
	if flags.Changed("port") {
		cfg.Port = udpPort
	}
	if flags.Changed("serial") {
		cfg.SerialPort = portName
	}
	if flags.Changed("baud") {
		cfg.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Username = wsUsername
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	settings = cfg

	// Console output for a human at a terminal, JSON otherwise
	logger, err = logging.New(cfg.LogLevel, term.IsTerminal(int(os.Stderr.Fd())))
	return err
}

// syncLogger flushes the logger installed by loadSettings
func syncLogger() {
	_ = logger.Sync()
}

// Execute runs the root command. Ctrl+C cancels the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer syncLogger()

	return rootCmd.ExecuteContext(ctx)
}
