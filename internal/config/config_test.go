// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/z21stat/pkg/z21"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, `
host = " 10.0.0.5 "
broadcast_flags = 0x00000003
keepalive_seconds = 20
log_level = "debug"
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Host != "10.0.0.5" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.BroadcastFlags != z21.BroadcastDriving|z21.BroadcastRMBus {
		t.Errorf("BroadcastFlags = 0x%08X", cfg.BroadcastFlags)
	}
	if cfg.Keepalive != 20*time.Second {
		t.Errorf("Keepalive = %s", cfg.Keepalive)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}

	// Keys not in the file keep their defaults
	def := Default()
	if cfg.Port != def.Port || cfg.Baud != def.Baud {
		t.Errorf("defaults lost: port=%d baud=%d", cfg.Port, cfg.Baud)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	cfg, err := Load(missing, true)
	if err != nil {
		t.Fatalf("optional Load() error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("optional Load() = %+v, want defaults", cfg)
	}

	if _, err := Load(missing, false); err == nil {
		t.Error("required Load() of missing file succeeded")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", `host = `, "load config"},
		{"unknown key", `colour = "red"`, "unknown key"},
		{"port range", `port = 70000`, "port"},
		{"keepalive too long", `keepalive_seconds = 90`, "keepalive"},
		{"bad level", `log_level = "loud"`, "log_level"},
		{"flags range", `broadcast_flags = -1`, "broadcast_flags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), false)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}
