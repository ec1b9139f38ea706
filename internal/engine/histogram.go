package engine

import (
	"encoding/binary"
	"errors"
	"io"
	"sort"

	"github.com/coffersTech/ftfcut/internal/ftf"
	"github.com/coffersTech/ftfcut/internal/storage"
)

type HistogramPoint struct {
	Time  uint64 `json:"time"`
	Count int    `json:"count"`
}

// Histogram counts event timestamps in fixed-width buckets.
type Histogram struct {
	Interval uint64
	buckets  map[uint64]int
}

func NewHistogram(interval uint64) *Histogram {
	if interval == 0 {
		interval = 1
	}
	return &Histogram{Interval: interval, buckets: make(map[uint64]int)}
}

func (h *Histogram) Add(ts uint64) {
	h.buckets[(ts/h.Interval)*h.Interval]++
}

// Points returns the non-empty buckets in time order.
func (h *Histogram) Points() []HistogramPoint {
	points := make([]HistogramPoint, 0, len(h.buckets))
	for t, c := range h.buckets {
		points = append(points, HistogramPoint{Time: t, Count: c})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Time < points[j].Time
	})
	return points
}

// ComputeHistogram aggregates the windowed events of a trace over time
// buckets of interval ticks. Only the first payload word of each event is
// read, so it works on streams as well as files.
func ComputeHistogram(r *storage.Reader, interval uint64, w Window) ([]HistogramPoint, error) {
	h := NewHistogram(interval)
	var ts [ftf.WordSize]byte
	for {
		off := r.Position()
		hdr, err := r.ReadHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, histErr(off, err)
		}
		typ, _, err := hdr.Classify()
		if err != nil {
			return nil, &FormatError{Offset: off, Type: typ, HasType: true, Err: err}
		}

		rest := hdr.PayloadLen()
		if typ == ftf.RecordEvent && hdr.EventType().Windowed() {
			if rest < ftf.WordSize {
				return nil, &FormatError{Offset: off, Type: typ, HasType: true, Err: ftf.ErrMalformed}
			}
			if err := r.ReadFull(ts[:]); err != nil {
				return nil, histErr(off, err)
			}
			if t := binary.LittleEndian.Uint64(ts[:]); w.Contains(t) {
				h.Add(t)
			}
			rest -= ftf.WordSize
		}
		if err := r.Skip(rest); err != nil {
			return nil, histErr(off, err)
		}
	}
	return h.Points(), nil
}

func histErr(off int64, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &FormatError{Offset: off, Err: ftf.ErrTruncated}
	}
	return &IOError{Op: "read", Offset: off, Err: err}
}
