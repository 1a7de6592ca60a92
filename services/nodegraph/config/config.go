// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads nodegraph configuration.
//
// Resolution order, later layers winning:
//
//  1. The embedded default.yaml.
//  2. A user YAML file (the --config flag, or NODEGRAPH_CONFIG).
//  3. NODEGRAPH_* environment variables.
//
// The merged result is validated before it is returned.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxFileSize is the largest config file Load will read (1MB).
const MaxFileSize = 1024 * 1024

// EnvConfigPath names the variable consulted when Load gets an empty path.
const EnvConfigPath = "NODEGRAPH_CONFIG"

//go:embed default.yaml
var defaultYAML []byte

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrConfigTooLarge is returned for files above MaxFileSize.
	ErrConfigTooLarge = errors.New("config file too large")
)

var configValidate = validator.New()

// =============================================================================
// Types
// =============================================================================

// Config is the complete nodegraph configuration.
type Config struct {
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Badger    BadgerConfig    `yaml:"badger"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SnapshotConfig controls the snapshot file.
type SnapshotConfig struct {
	// Path of the snapshot file. Loaded on startup if it exists, written on
	// save. Relative paths resolve against the working directory.
	Path string `yaml:"path" validate:"required"`

	// Compress enables zstd compression of the payload.
	Compress bool `yaml:"compress"`

	// SaveInterval is how often serve saves a changed graph. Zero saves on
	// shutdown only.
	SaveInterval time.Duration `yaml:"save_interval" validate:"gte=0"`
}

// BadgerConfig controls the optional badger backend. An empty Dir disables it.
type BadgerConfig struct {
	Dir            string        `yaml:"dir"`
	SyncWrites     bool          `yaml:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" validate:"gt=0,lt=1"`
}

// Enabled reports whether a badger directory is configured.
func (b BadgerConfig) Enabled() bool {
	return b.Dir != ""
}

// IngestConfig points at a directory of JSON record files.
type IngestConfig struct {
	Dir string `yaml:"dir"`

	// Watch makes serve follow changes to Dir instead of reading it once.
	Watch bool `yaml:"watch"`

	// Debounce is how long the watcher waits for a burst of changes to end.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr              string        `yaml:"addr" validate:"required"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gt=0"`
}

// CacheConfig sizes the path query cache and bounds each path search.
// A zero capacity disables caching; a zero timeout leaves searches
// unbounded.
type CacheConfig struct {
	Capacity    int           `yaml:"capacity" validate:"gte=0"`
	PathTimeout time.Duration `yaml:"path_timeout" validate:"gte=0"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// TelemetryConfig mirrors telemetry.Config.
type TelemetryConfig struct {
	Environment    string `yaml:"environment"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded defaults without consulting the environment.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := decode(bytes.NewReader(defaultYAML), cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	return cfg, nil
}

// Load builds the effective configuration.
//
// Description:
//
//	Starts from the embedded defaults, overlays the YAML file at path (or
//	at $NODEGRAPH_CONFIG when path is empty), applies NODEGRAPH_*
//	environment overrides and validates the result. Keys absent from the
//	file keep their defaults. Unknown keys are rejected.
//
// Inputs:
//
//	path - Config file path. Empty means defaults plus environment only.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Read, parse or validation failure. Validation failures wrap
//	ErrInvalidConfig.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path, _ = lookup(EnvConfigPath)
	}
	if path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrConfigTooLarge, info.Size(), MaxFileSize)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := decode(f, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// decode overlays YAML from r onto cfg. An empty document leaves cfg as is.
func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// =============================================================================
// Environment Overrides
// =============================================================================

// envBinding ties one variable to a setter.
type envBinding struct {
	name string
	set  func(cfg *Config, value string) error
}

func stringVar(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

var envBindings = []envBinding{
	{"NODEGRAPH_SNAPSHOT_PATH", stringVar(func(c *Config) *string { return &c.Snapshot.Path })},
	{"NODEGRAPH_SNAPSHOT_COMPRESS", boolVar(func(c *Config) *bool { return &c.Snapshot.Compress })},
	{"NODEGRAPH_BADGER_DIR", stringVar(func(c *Config) *string { return &c.Badger.Dir })},
	{"NODEGRAPH_BADGER_SYNC_WRITES", boolVar(func(c *Config) *bool { return &c.Badger.SyncWrites })},
	{"NODEGRAPH_BADGER_GC_INTERVAL", durationVar(func(c *Config) *time.Duration { return &c.Badger.GCInterval })},
	{"NODEGRAPH_SNAPSHOT_SAVE_INTERVAL", durationVar(func(c *Config) *time.Duration { return &c.Snapshot.SaveInterval })},
	{"NODEGRAPH_RECORDS_DIR", stringVar(func(c *Config) *string { return &c.Ingest.Dir })},
	{"NODEGRAPH_RECORDS_WATCH", boolVar(func(c *Config) *bool { return &c.Ingest.Watch })},
	{"NODEGRAPH_SERVER_ADDR", stringVar(func(c *Config) *string { return &c.Server.Addr })},
	{"NODEGRAPH_SHUTDOWN_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout })},
	{"NODEGRAPH_CACHE_CAPACITY", intVar(func(c *Config) *int { return &c.Cache.Capacity })},
	{"NODEGRAPH_PATH_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Cache.PathTimeout })},
	{"NODEGRAPH_LOG_LEVEL", stringVar(func(c *Config) *string { return &c.Log.Level })},
	{"NODEGRAPH_LOG_JSON", boolVar(func(c *Config) *bool { return &c.Log.JSON })},
	{"NODEGRAPH_LOG_DIR", stringVar(func(c *Config) *string { return &c.Log.Dir })},
	{"NODEGRAPH_ENV", stringVar(func(c *Config) *string { return &c.Telemetry.Environment })},
	{"NODEGRAPH_TRACE_EXPORTER", stringVar(func(c *Config) *string { return &c.Telemetry.TraceExporter })},
	{"NODEGRAPH_METRIC_EXPORTER", stringVar(func(c *Config) *string { return &c.Telemetry.MetricExporter })},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", stringVar(func(c *Config) *string { return &c.Telemetry.OTLPEndpoint })},
}

// EnvVars lists every variable Load consults, in application order.
func EnvVars() []string {
	names := make([]string, 0, len(envBindings)+1)
	names = append(names, EnvConfigPath)
	for _, b := range envBindings {
		names = append(names, b.name)
	}
	return names
}

// applyEnv applies set variables. Empty values count as unset.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(cfg, v); err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, b.name, v, err)
		}
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks field constraints and the server address.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, port, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("%w: server.addr %q: %v", ErrInvalidConfig, c.Server.Addr, err)
	} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("%w: server.addr %q: bad port", ErrInvalidConfig, c.Server.Addr)
	}
	return nil
}
