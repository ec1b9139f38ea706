package cli

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coffersTech/ftfcut/internal/engine"
	"github.com/coffersTech/ftfcut/internal/ftf"
	"github.com/coffersTech/ftfcut/internal/storage"
	"github.com/fatih/color"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

// writeTrace writes strings 1-5 and events at 100, 1000, 1500, 2000 and
// 3000. Every event uses indices 1-4; the last one also uses 5.
func writeTrace(t *testing.T) string {
	t.Helper()
	buf := ftf.AppendMagic(nil)
	buf = ftf.AppendInitialization(buf, 1_000_000)
	var err error
	for i, s := range []string{"cat", "name", "key", "value", "late"} {
		buf, err = ftf.StringRecord{Index: uint16(i + 1), Value: s}.AppendTo(buf)
		require.NoError(t, err)
	}
	for _, ts := range []uint64{100, 1000, 1500, 2000, 3000} {
		args := []ftf.Argument{ftf.StringArg(ftf.Ref(3), ftf.Ref(4))}
		if ts == 3000 {
			args = append(args, ftf.Int32Arg(ftf.Ref(5), 1))
		}
		buf, err = ftf.NewInstant(ts, ftf.InlineThread(1, 2), ftf.Ref(1), ftf.Ref(2), args...).AppendTo(buf)
		require.NoError(t, err)
	}
	path := filepath.Join(t.TempDir(), "trace.ftf")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func execute(t *testing.T, env map[string]string, args ...string) (string, string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var stdout, stderr bytes.Buffer
	root := NewRoot(&stdout, &stderr, func(k string) string { return env[k] })
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// readRecords splits a trace into its string indices and event timestamps.
func readRecords(t *testing.T, data []byte) (strs []uint16, events []uint64) {
	t.Helper()
	for len(data) > 0 {
		h := ftf.ParseHeader(data)
		rec := data[:h.Len()]
		data = data[h.Len():]
		switch h.Type() {
		case ftf.RecordString:
			strs = append(strs, h.StringIndex())
		case ftf.RecordEvent:
			e, err := ftf.DecodeEvent(rec)
			require.NoError(t, err)
			events = append(events, e.Timestamp)
		}
	}
	return strs, events
}

func TestCut_WindowedOutput(t *testing.T) {
	in := writeTrace(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "cut.ftf")
	report := filepath.Join(dir, "report.json")

	stdout, stderr, err := execute(t, nil,
		"cut", "-s", "500", "-e", "2500", "-i", in, "-o", out,
		"--report", report, "--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, stdout, "kept 3 of 5 events")
	assert.Contains(t, stderr, `"msg":"cut complete"`)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	strs, events := readRecords(t, data)
	assert.Equal(t, []uint64{1000, 1500, 2000}, events)
	assert.ElementsMatch(t, []uint16{1, 2, 3, 4}, strs)

	stats, err := engine.LoadReport(report)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.EventsKept)
	assert.Equal(t, engine.Window{Start: 500, End: 2500}, stats.Window)
	assert.Equal(t, int64(len(data)), stats.BytesWritten)
}

func TestCut_CompressedOutput(t *testing.T) {
	in := writeTrace(t)
	out := filepath.Join(t.TempDir(), "cut.ftf.zst")

	_, _, err := execute(t, nil, "cut", "-i", in, "-o", out, "--log-level", "error")
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()
	data, err := io.ReadAll(dec)
	require.NoError(t, err)

	strs, events := readRecords(t, data)
	assert.Len(t, events, 5)
	assert.Len(t, strs, 5)
}

func TestCut_CompressionFromEnv(t *testing.T) {
	in := writeTrace(t)
	out := filepath.Join(t.TempDir(), "cut.ftf")

	_, _, err := execute(t, map[string]string{"FTFCUT_COMPRESS": "zstd"}, "cut", "-i", in, "-o", out)
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x28, 0xB5, 0x2F, 0xFD}, data[:4])
}

func TestCut_ConfigFile(t *testing.T) {
	in := writeTrace(t)
	dir := t.TempDir()
	report := filepath.Join(dir, "from-config.json")
	cfg := filepath.Join(dir, "ftfcut.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[output]\nreport = \""+filepath.ToSlash(report)+"\"\n"), 0o644))

	_, _, err := execute(t, nil, "--config", cfg, "cut", "-i", in, "-o", filepath.Join(dir, "o.ftf"))
	require.NoError(t, err)
	_, err = os.Stat(report)
	assert.NoError(t, err)
}

func TestCut_Errors(t *testing.T) {
	in := writeTrace(t)
	out := filepath.Join(t.TempDir(), "o.ftf")

	tests := []struct {
		name string
		env  map[string]string
		args []string
		want string
	}{
		{"start after end", nil, []string{"cut", "-s", "10", "-e", "5", "-i", in, "-o", out}, "after end"},
		{"missing input flag", nil, []string{"cut", "-o", out}, "input-path"},
		{"missing input file", nil, []string{"cut", "-i", in + ".nope", "-o", out}, "no such file"},
		{"bad policy", nil, []string{"cut", "-i", in, "-o", out, "--unknown-events", "maybe"}, "maybe"},
		{"bad env", map[string]string{"FTFCUT_READ_BUFFER": "x"}, []string{"cut", "-i", in, "-o", out}, "FTFCUT_READ_BUFFER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.env, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCut_RejectsCompressedInput(t *testing.T) {
	in := writeTrace(t)
	dir := t.TempDir()
	zst := filepath.Join(dir, "trace.ftf.zst")
	_, _, err := execute(t, nil, "cut", "-i", in, "-o", zst)
	require.NoError(t, err)

	_, _, err = execute(t, nil, "cut", "-i", zst, "-o", filepath.Join(dir, "again.ftf"))
	assert.ErrorIs(t, err, storage.ErrNotSeekable)
}

func TestCut_DanglingReference(t *testing.T) {
	buf, err := ftf.NewInstant(5, ftf.InlineThread(1, 1), ftf.Ref(9), ftf.InlineString("x")).AppendTo(nil)
	require.NoError(t, err)
	in := filepath.Join(t.TempDir(), "bad.ftf")
	require.NoError(t, os.WriteFile(in, buf, 0o644))

	_, _, err = execute(t, nil, "cut", "-i", in, "-o", in+".out")
	var dangling *engine.DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, uint16(9), dangling.Index)
}

func TestInspect_JSON(t *testing.T) {
	in := writeTrace(t)
	stdout, _, err := execute(t, nil, "inspect", in, "--json", "--buckets", "3")
	require.NoError(t, err)

	v, err := fastjson.Parse(strings.TrimSpace(stdout))
	require.NoError(t, err)
	assert.Equal(t, uint64(12), v.GetUint64("records"))
	assert.Equal(t, uint64(5), v.GetUint64("event_types", "instant"))
	assert.Equal(t, uint64(100), v.GetUint64("min_ts"))
	assert.Equal(t, uint64(3000), v.GetUint64("max_ts"))

	var total int
	for _, p := range v.GetArray("histogram") {
		total += p.GetInt("count")
	}
	assert.Equal(t, 5, total)
}

func TestInspect_Text(t *testing.T) {
	prev := color.NoColor
	t.Cleanup(func() { color.NoColor = prev })

	in := writeTrace(t)
	stdout, _, err := execute(t, nil, "inspect", in, "--no-color", "--interval", "1000")
	require.NoError(t, err)

	assert.Contains(t, stdout, "12 records")
	assert.Contains(t, stdout, "present")
	assert.Contains(t, stdout, "5 indices, 0 redefinitions")
	assert.Contains(t, stdout, "100 .. 3000")
	assert.Contains(t, stdout, "instant")
	assert.Contains(t, stdout, "histogram")
	assert.NotContains(t, stdout, "\x1b[")
}

func TestInspect_CompressedInput(t *testing.T) {
	in := writeTrace(t)
	zst := filepath.Join(t.TempDir(), "trace.ftf.zst")
	_, _, err := execute(t, nil, "cut", "-i", in, "-o", zst)
	require.NoError(t, err)

	stdout, _, err := execute(t, nil, "inspect", zst, "--json", "--buckets", "2")
	require.NoError(t, err)
	v, err := fastjson.Parse(strings.TrimSpace(stdout))
	require.NoError(t, err)
	assert.True(t, v.GetBool("magic"))
	assert.Equal(t, uint64(5), v.GetUint64("record_types", "event"))
}

func TestInspect_RequiresFile(t *testing.T) {
	_, _, err := execute(t, nil, "inspect")
	assert.Error(t, err)
}
