// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "nodegraph.snap", cfg.Snapshot.Path)
	assert.False(t, cfg.Snapshot.Compress)
	assert.Equal(t, 5*time.Minute, cfg.Snapshot.SaveInterval)
	assert.False(t, cfg.Ingest.Watch)
	assert.Equal(t, 200*time.Millisecond, cfg.Ingest.Debounce)
	assert.False(t, cfg.Badger.Enabled())
	assert.Equal(t, 5*time.Minute, cfg.Badger.GCInterval)
	assert.Equal(t, 0.5, cfg.Badger.GCDiscardRatio)
	assert.Equal(t, ":8089", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 256, cfg.Cache.Capacity)
	assert.Equal(t, 30*time.Second, cfg.Cache.PathTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
	assert.Equal(t, "prometheus", cfg.Telemetry.MetricExporter)
	require.NoError(t, cfg.Validate())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := load("", envMap(nil))
	require.NoError(t, err)

	def, err := Default()
	require.NoError(t, err)
	assert.Equal(t, def, cfg)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
snapshot:
  path: /data/graph.snap
  compress: true
badger:
  dir: /data/badger
cache:
  capacity: 0
`)

	cfg, err := load(path, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "/data/graph.snap", cfg.Snapshot.Path)
	assert.True(t, cfg.Snapshot.Compress)
	assert.True(t, cfg.Badger.Enabled())
	assert.Equal(t, 0, cfg.Cache.Capacity)

	// Untouched keys keep their defaults, including siblings in the same section.
	assert.True(t, cfg.Badger.SyncWrites)
	assert.Equal(t, 5*time.Minute, cfg.Badger.GCInterval)
	assert.Equal(t, ":8089", cfg.Server.Addr)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := load(writeConfig(t, ""), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "nodegraph.snap", cfg.Snapshot.Path)
}

func TestLoad_PathFromEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: 127.0.0.1:9000\n")

	cfg, err := load("", envMap(map[string]string{EnvConfigPath: path}))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warn\n")

	cfg, err := load(path, envMap(map[string]string{
		"NODEGRAPH_LOG_LEVEL":          "debug",
		"NODEGRAPH_LOG_JSON":           "true",
		"NODEGRAPH_SNAPSHOT_COMPRESS":  "1",
		"NODEGRAPH_CACHE_CAPACITY":     "32",
		"NODEGRAPH_PATH_TIMEOUT":       "2s",
		"NODEGRAPH_BADGER_GC_INTERVAL": "90s",
		"NODEGRAPH_RECORDS_DIR":        "/records",
		"NODEGRAPH_RECORDS_WATCH":      "true",
		"NODEGRAPH_SNAPSHOT_PATH":      "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.True(t, cfg.Snapshot.Compress)
	assert.Equal(t, 32, cfg.Cache.Capacity)
	assert.Equal(t, 2*time.Second, cfg.Cache.PathTimeout)
	assert.Equal(t, 90*time.Second, cfg.Badger.GCInterval)
	assert.Equal(t, "/records", cfg.Ingest.Dir)
	assert.True(t, cfg.Ingest.Watch)
	assert.Equal(t, "nodegraph.snap", cfg.Snapshot.Path, "empty variable is ignored")
}

func TestLoad_BadEnvValue(t *testing.T) {
	tests := map[string]string{
		"NODEGRAPH_CACHE_CAPACITY":   "lots",
		"NODEGRAPH_LOG_JSON":         "maybe",
		"NODEGRAPH_SHUTDOWN_TIMEOUT": "soon",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := load("", envMap(map[string]string{name: value}))
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := load(filepath.Join(t.TempDir(), "absent.yaml"), envMap(nil))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := load(writeConfig(t, "snapshot:\n  pth: x\n"), envMap(nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pth")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := load(writeConfig(t, "snapshot: [unclosed\n"), envMap(nil))
		require.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		body := "# " + strings.Repeat("x", MaxFileSize) + "\n"
		_, err := load(writeConfig(t, body), envMap(nil))
		require.ErrorIs(t, err, ErrConfigTooLarge)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty snapshot path", func(c *Config) { c.Snapshot.Path = "" }},
		{"negative cache", func(c *Config) { c.Cache.Capacity = -1 }},
		{"negative path timeout", func(c *Config) { c.Cache.PathTimeout = -time.Second }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad trace exporter", func(c *Config) { c.Telemetry.TraceExporter = "zipkin" }},
		{"bad metric exporter", func(c *Config) { c.Telemetry.MetricExporter = "statsd" }},
		{"otlp without endpoint", func(c *Config) {
			c.Telemetry.TraceExporter = "otlp"
			c.Telemetry.OTLPEndpoint = ""
		}},
		{"discard ratio out of range", func(c *Config) { c.Badger.GCDiscardRatio = 1 }},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }},
		{"negative save interval", func(c *Config) { c.Snapshot.SaveInterval = -time.Second }},
		{"negative debounce", func(c *Config) { c.Ingest.Debounce = -time.Millisecond }},
		{"addr without port", func(c *Config) { c.Server.Addr = "localhost" }},
		{"addr with bad port", func(c *Config) { c.Server.Addr = ":http" }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestEnvVars(t *testing.T) {
	vars := EnvVars()
	assert.Equal(t, EnvConfigPath, vars[0])
	assert.Contains(t, vars, "NODEGRAPH_SNAPSHOT_PATH")
	assert.Contains(t, vars, "OTEL_EXPORTER_OTLP_ENDPOINT")
}
