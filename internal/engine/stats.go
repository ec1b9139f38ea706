package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/valyala/fastjson"
)

// Stats summarises one cut.
type Stats struct {
	RunID  string
	Window Window

	RecordsRead        uint64
	BytesRead          int64
	EventsSeen         uint64
	EventsKept         uint64
	EventsDropped      uint64
	UnknownEvents      uint64
	StringsIndexed     uint64
	StringsBackfilled  uint64
	PassthroughRecords uint64
	KeptByType         map[string]uint64

	BytesWritten int64
	Digest       string // blake2b-256 of the uncompressed output, hex
	Duration     time.Duration
}

func newStats(runID string, w Window) Stats {
	return Stats{RunID: runID, Window: w, KeptByType: make(map[string]uint64)}
}

func u64(a *fastjson.Arena, v uint64) *fastjson.Value {
	return a.NewNumberString(strconv.FormatUint(v, 10))
}

// AppendJSON appends the report form of s to dst.
func (s Stats) AppendJSON(dst []byte) []byte {
	var a fastjson.Arena
	o := a.NewObject()
	o.Set("run_id", a.NewString(s.RunID))

	w := a.NewObject()
	w.Set("start_ts", u64(&a, s.Window.Start))
	w.Set("end_ts", u64(&a, s.Window.End))
	o.Set("window", w)

	o.Set("records_read", u64(&a, s.RecordsRead))
	o.Set("bytes_read", a.NewNumberInt(int(s.BytesRead)))
	o.Set("events_seen", u64(&a, s.EventsSeen))
	o.Set("events_kept", u64(&a, s.EventsKept))
	o.Set("events_dropped", u64(&a, s.EventsDropped))
	o.Set("unknown_events", u64(&a, s.UnknownEvents))
	o.Set("strings_indexed", u64(&a, s.StringsIndexed))
	o.Set("strings_backfilled", u64(&a, s.StringsBackfilled))
	o.Set("passthrough_records", u64(&a, s.PassthroughRecords))

	// Sorted keys keep reports diffable.
	byType := a.NewObject()
	for _, k := range sortedKeys(s.KeptByType) {
		byType.Set(k, u64(&a, s.KeptByType[k]))
	}
	o.Set("kept_by_type", byType)

	o.Set("bytes_written", a.NewNumberInt(int(s.BytesWritten)))
	o.Set("digest", a.NewString(s.Digest))
	o.Set("duration_ms", a.NewNumberFloat64(float64(s.Duration)/float64(time.Millisecond)))
	return o.MarshalTo(dst)
}

// SaveReport writes the report to path atomically.
func (s Stats) SaveReport(path string) error {
	data := append(s.AppendJSON(nil), '\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmpPath := path + ".tmp"

	// Write to temp file first
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, err
	}
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return Stats{}, fmt.Errorf("parse report %s: %w", path, err)
	}

	s := Stats{
		RunID: string(v.GetStringBytes("run_id")),
		Window: Window{
			Start: v.GetUint64("window", "start_ts"),
			End:   v.GetUint64("window", "end_ts"),
		},
		RecordsRead:        v.GetUint64("records_read"),
		BytesRead:          v.GetInt64("bytes_read"),
		EventsSeen:         v.GetUint64("events_seen"),
		EventsKept:         v.GetUint64("events_kept"),
		EventsDropped:      v.GetUint64("events_dropped"),
		UnknownEvents:      v.GetUint64("unknown_events"),
		StringsIndexed:     v.GetUint64("strings_indexed"),
		StringsBackfilled:  v.GetUint64("strings_backfilled"),
		PassthroughRecords: v.GetUint64("passthrough_records"),
		KeptByType:         make(map[string]uint64),
		BytesWritten:       v.GetInt64("bytes_written"),
		Digest:             string(v.GetStringBytes("digest")),
		Duration:           time.Duration(v.GetFloat64("duration_ms") * float64(time.Millisecond)),
	}
	if o := v.GetObject("kept_by_type"); o != nil {
		o.Visit(func(k []byte, val *fastjson.Value) {
			n, _ := val.Uint64()
			s.KeptByType[string(k)] = n
		})
	}
	return s, nil
}
