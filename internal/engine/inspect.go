package engine

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/coffersTech/ftfcut/internal/ftf"
	"github.com/coffersTech/ftfcut/internal/storage"
	"github.com/valyala/fastjson"
)

// Summary describes the contents of a trace without decoding event bodies.
type Summary struct {
	Records        uint64
	Bytes          int64
	Magic          bool // first record is the magic number record
	TicksPerSecond uint64

	ByRecordType map[string]uint64
	ByEventType  map[string]uint64

	Strings         int    // distinct string indices defined
	StringRedefines uint64 // definitions of an index already defined

	HasEvents    bool
	MinTimestamp uint64
	MaxTimestamp uint64

	Histogram []HistogramPoint
}

// Span returns the distance between the first and last event timestamp in
// seconds, or 0 when the tick rate is unknown.
func (s *Summary) Span() float64 {
	if !s.HasEvents || s.TicksPerSecond == 0 {
		return 0
	}
	return float64(s.MaxTimestamp-s.MinTimestamp) / float64(s.TicksPerSecond)
}

// Inspect reads the whole trace once. When interval is non-zero event
// timestamps are also bucketed into a histogram.
func Inspect(r *storage.Reader, interval uint64) (*Summary, error) {
	s := &Summary{
		ByRecordType: make(map[string]uint64),
		ByEventType:  make(map[string]uint64),
	}
	var hist *Histogram
	if interval > 0 {
		hist = NewHistogram(interval)
	}
	var defined EmittedSet
	var word [ftf.WordSize]byte

	for {
		off := r.Position()
		h, err := r.ReadHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s, histErr(off, err)
		}
		typ, _, err := h.Classify()
		if err != nil {
			return s, &FormatError{Offset: off, Type: typ, HasType: true, Err: err}
		}
		if s.Records == 0 {
			s.Magic = h.IsMagic()
		}
		s.Records++
		s.ByRecordType[typ.String()]++

		rest := h.PayloadLen()
		switch typ {
		case ftf.RecordInitialization:
			if rest >= ftf.WordSize {
				if err := r.ReadFull(word[:]); err != nil {
					return s, histErr(off, err)
				}
				s.TicksPerSecond = binary.LittleEndian.Uint64(word[:])
				rest -= ftf.WordSize
			}
		case ftf.RecordString:
			if !defined.Add(h.StringIndex()) {
				s.StringRedefines++
			}
		case ftf.RecordEvent:
			s.ByEventType[h.EventType().String()]++
			if rest < ftf.WordSize {
				return s, &FormatError{Offset: off, Type: typ, HasType: true, Err: ftf.ErrMalformed}
			}
			if err := r.ReadFull(word[:]); err != nil {
				return s, histErr(off, err)
			}
			rest -= ftf.WordSize
			ts := binary.LittleEndian.Uint64(word[:])
			if !s.HasEvents || ts < s.MinTimestamp {
				s.MinTimestamp = ts
			}
			if !s.HasEvents || ts > s.MaxTimestamp {
				s.MaxTimestamp = ts
			}
			s.HasEvents = true
			if hist != nil && h.EventType().Windowed() {
				hist.Add(ts)
			}
		}
		if err := r.Skip(rest); err != nil {
			return s, histErr(off, err)
		}
	}

	s.Bytes = r.Position()
	s.Strings = defined.Len()
	if hist != nil {
		s.Histogram = hist.Points()
	}
	return s, nil
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AppendJSON appends the summary as a JSON object to dst.
func (s *Summary) AppendJSON(dst []byte) []byte {
	var a fastjson.Arena
	o := a.NewObject()
	o.Set("records", u64(&a, s.Records))
	o.Set("bytes", a.NewNumberInt(int(s.Bytes)))
	if s.Magic {
		o.Set("magic", a.NewTrue())
	} else {
		o.Set("magic", a.NewFalse())
	}
	o.Set("ticks_per_second", u64(&a, s.TicksPerSecond))

	rt := a.NewObject()
	for _, k := range sortedKeys(s.ByRecordType) {
		rt.Set(k, u64(&a, s.ByRecordType[k]))
	}
	o.Set("record_types", rt)
	et := a.NewObject()
	for _, k := range sortedKeys(s.ByEventType) {
		et.Set(k, u64(&a, s.ByEventType[k]))
	}
	o.Set("event_types", et)

	o.Set("strings", a.NewNumberInt(s.Strings))
	o.Set("string_redefinitions", u64(&a, s.StringRedefines))
	if s.HasEvents {
		o.Set("min_ts", u64(&a, s.MinTimestamp))
		o.Set("max_ts", u64(&a, s.MaxTimestamp))
		o.Set("span_seconds", a.NewNumberFloat64(s.Span()))
	}

	if s.Histogram != nil {
		arr := a.NewArray()
		for i, p := range s.Histogram {
			pt := a.NewObject()
			pt.Set("time", u64(&a, p.Time))
			pt.Set("count", a.NewNumberInt(p.Count))
			arr.SetArrayItem(i, pt)
		}
		o.Set("histogram", arr)
	}
	return o.MarshalTo(dst)
}
