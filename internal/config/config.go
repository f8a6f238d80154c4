// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads z21stat settings from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"

	"github.com/Thermoquad/z21stat/pkg/z21"
)

// Config holds the connection and runtime settings. Command-line flags
// override these values.
type Config struct {
	Host           string
	Port           int
	URL            string
	Username       string
	SerialPort     string
	Baud           int
	BroadcastFlags uint32
	Keepalive      time.Duration
	LogLevel       string
	MetricsAddr    string
}

// config.toml key mapping
type fileConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	URL              string `toml:"url"`
	Username         string `toml:"username"`
	SerialPort       string `toml:"serial_port"`
	Baud             int    `toml:"baud"`
	BroadcastFlags   int64  `toml:"broadcast_flags"`
	KeepaliveSeconds int    `toml:"keepalive_seconds"`
	LogLevel         string `toml:"log_level"`
	MetricsAddr      string `toml:"metrics_addr"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Host:           "192.168.0.111",
		Port:           z21.DefaultPort,
		Baud:           115200,
		BroadcastFlags: z21.DefaultBroadcastFlags,
		Keepalive:      30 * time.Second,
		LogLevel:       "warn",
	}
}

// DefaultPath returns $HOME/.config/z21stat/config.toml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "z21stat", "config.toml")
}

// Load reads path over the defaults. A missing file is not an error when
// optional is set.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("username") {
		cfg.Username = strings.TrimSpace(raw.Username)
	}
	if meta.IsDefined("serial_port") {
		cfg.SerialPort = strings.TrimSpace(raw.SerialPort)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("broadcast_flags") {
		if raw.BroadcastFlags < 0 || raw.BroadcastFlags > 0xFFFFFFFF {
			return Config{}, fmt.Errorf("load config: broadcast_flags %d out of range", raw.BroadcastFlags)
		}
		cfg.BroadcastFlags = uint32(raw.BroadcastFlags)
	}
	if meta.IsDefined("keepalive_seconds") {
		cfg.Keepalive = time.Duration(raw.KeepaliveSeconds) * time.Second
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud %d must be positive", c.Baud)
	}
	if c.Keepalive < 0 {
		return fmt.Errorf("keepalive %s must not be negative", c.Keepalive)
	}
	// A Z21 drops clients after 60 seconds of silence
	if c.Keepalive >= time.Minute {
		return fmt.Errorf("keepalive %s must be below 60s", c.Keepalive)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}
