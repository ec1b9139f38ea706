package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/coffersTech/ftfcut/internal/engine"
	"github.com/coffersTech/ftfcut/internal/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, engine.PolicyInclude, cfg.Policy())
	assert.Equal(t, storage.WriterOptions{
		BufferSize:  storage.DefaultBufferSize,
		Compression: storage.CompressionAuto,
	}, cfg.WriterOptions())
}

func TestLoad_AllFormats(t *testing.T) {
	want := Default()
	want.Log.Level = "debug"
	want.Log.Format = "json"
	want.Cut.UnknownEvents = "drop"
	want.Cut.ReadBuffer = 4096
	want.Cut.ProgressEvery = 500
	want.Output.Compression = "zstd"
	want.Output.Report = "/tmp/report.json"

	files := map[string]string{
		"cfg.toml": `
[log]
level = "debug"
format = "json"

[cut]
unknown_events = "drop"
read_buffer = 4096
progress_every = 500

[output]
compression = "zstd"
report = "/tmp/report.json"
`,
		"cfg.yaml": `
log:
  level: debug
  format: json
cut:
  unknown_events: drop
  read_buffer: 4096
  progress_every: 500
output:
  compression: zstd
  report: /tmp/report.json
`,
		"cfg.json": `{
  "log": {"level": "debug", "format": "json"},
  "cut": {"unknown_events": "drop", "read_buffer": 4096, "progress_every": 500},
  "output": {"compression": "zstd", "report": "/tmp/report.json"},
  "ignored": true
}`,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			got, err := Load(writeFile(t, name, content))
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
			require.NoError(t, got.Validate())
		})
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	got, err := Load(writeFile(t, "cfg.yml", "cut:\n  unknown_events: fail\n"))
	require.NoError(t, err)
	assert.Equal(t, "fail", got.Cut.UnknownEvents)
	assert.Equal(t, storage.DefaultBufferSize, got.Cut.ReadBuffer)
	assert.Equal(t, "info", got.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"bad toml", "c.toml", "[log\nlevel="},
		{"bad yaml", "c.yaml", "log: [unterminated"},
		{"bad json", "c.json", "{"},
		{"json not object", "c.json", "[1, 2]"},
		{"json wrong type", "c.json", `{"cut": {"read_buffer": "big"}}`},
		{"unknown extension", "c.ini", "level=debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FTFCUT_LOG_LEVEL":      "warn",
		"FTFCUT_UNKNOWN_EVENTS": "drop",
		"FTFCUT_COMPRESS":       "none",
		"FTFCUT_READ_BUFFER":    "8192",
		"FTFCUT_PROGRESS_EVERY": "10",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.Equal(t, engine.PolicyDrop, cfg.Policy())
	assert.Equal(t, storage.CompressionNone, cfg.WriterOptions().Compression)
	assert.Equal(t, 8192, cfg.Cut.ReadBuffer)
	assert.Equal(t, uint64(10), cfg.Cut.ProgressEvery)
}

func TestApplyEnv_BadNumbers(t *testing.T) {
	env := map[string]string{"FTFCUT_READ_BUFFER": "lots", "FTFCUT_PROGRESS_EVERY": "-1"}
	err := Default().ApplyEnv(func(k string) string { return env[k] })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FTFCUT_READ_BUFFER")
	assert.Contains(t, err.Error(), "FTFCUT_PROGRESS_EVERY")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Cut.UnknownEvents = "maybe"
	cfg.Output.Compression = "gzip"
	cfg.Cut.ReadBuffer = -1
	cfg.Output.WriteBuffer = -1

	err := cfg.Validate()
	require.Error(t, err)
	for _, part := range []string{"loud", "xml", "maybe", "gzip", "read_buffer", "write_buffer"} {
		assert.Contains(t, err.Error(), part)
	}
}
