// Package config handles configuration loading and validation for ftfcut.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/coffersTech/ftfcut/internal/engine"
	"github.com/coffersTech/ftfcut/internal/logging"
	"github.com/coffersTech/ftfcut/internal/storage"
	"gopkg.in/yaml.v3"
)

// Config is the file and environment configurable part of a run. Command
// line flags are applied on top of it.
type Config struct {
	Log    LogConfig    `toml:"log" yaml:"log"`
	Cut    CutConfig    `toml:"cut" yaml:"cut"`
	Output OutputConfig `toml:"output" yaml:"output"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

type CutConfig struct {
	UnknownEvents string `toml:"unknown_events" yaml:"unknown_events"`
	ReadBuffer    int    `toml:"read_buffer" yaml:"read_buffer"`
	ProgressEvery uint64 `toml:"progress_every" yaml:"progress_every"`
}

type OutputConfig struct {
	Compression string `toml:"compression" yaml:"compression"`
	WriteBuffer int    `toml:"write_buffer" yaml:"write_buffer"`
	Report      string `toml:"report" yaml:"report"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatAuto),
		},
		Cut: CutConfig{
			UnknownEvents: string(engine.PolicyInclude),
			ReadBuffer:    storage.DefaultBufferSize,
			ProgressEvery: engine.DefaultProgressEvery,
		},
		Output: OutputConfig{
			Compression: string(storage.CompressionAuto),
			WriteBuffer: storage.DefaultBufferSize,
		},
	}
}

// Load reads path on top of the defaults. The format follows the file
// extension: .toml, .yaml/.yml or .json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	case ".json":
		if err := decodeJSON(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FTFCUT_* variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("FTFCUT_LOG_LEVEL", &c.Log.Level)
	str("FTFCUT_LOG_FORMAT", &c.Log.Format)
	str("FTFCUT_UNKNOWN_EVENTS", &c.Cut.UnknownEvents)
	str("FTFCUT_COMPRESS", &c.Output.Compression)
	str("FTFCUT_REPORT", &c.Output.Report)

	var errs []error
	if v := getenv("FTFCUT_READ_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FTFCUT_READ_BUFFER: %w", err))
		}
		c.Cut.ReadBuffer = n
	}
	if v := getenv("FTFCUT_WRITE_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FTFCUT_WRITE_BUFFER: %w", err))
		}
		c.Output.WriteBuffer = n
	}
	if v := getenv("FTFCUT_PROGRESS_EVERY"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("FTFCUT_PROGRESS_EVERY: %w", err))
		}
		c.Cut.ProgressEvery = n
	}
	return errors.Join(errs...)
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log level %q: want debug, info, warn or error", c.Log.Level))
	}
	if _, err := engine.ParsePolicy(c.Cut.UnknownEvents); err != nil {
		errs = append(errs, err)
	}
	if _, err := storage.ParseCompression(c.Output.Compression); err != nil {
		errs = append(errs, err)
	}
	if c.Cut.ReadBuffer < 0 {
		errs = append(errs, fmt.Errorf("read_buffer must not be negative, got %d", c.Cut.ReadBuffer))
	}
	if c.Output.WriteBuffer < 0 {
		errs = append(errs, fmt.Errorf("write_buffer must not be negative, got %d", c.Output.WriteBuffer))
	}
	return errors.Join(errs...)
}

// Policy returns the parsed unknown-event policy. Call Validate first.
func (c *Config) Policy() engine.UnknownEventPolicy {
	p, _ := engine.ParsePolicy(c.Cut.UnknownEvents)
	return p
}

// WriterOptions returns the storage options for the output file.
func (c *Config) WriterOptions() storage.WriterOptions {
	comp, _ := storage.ParseCompression(c.Output.Compression)
	return storage.WriterOptions{BufferSize: c.Output.WriteBuffer, Compression: comp}
}
