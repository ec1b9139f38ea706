package engine

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/coffersTech/ftfcut/internal/ftf"
	"github.com/coffersTech/ftfcut/internal/storage"
	"github.com/google/uuid"
)

// DefaultProgressEvery is the number of records between progress log lines.
const DefaultProgressEvery = 1_000_000

// Options configures a Cutter.
type Options struct {
	Filter        Filter
	Logger        *slog.Logger
	ProgressEvery uint64
}

// Cutter copies the events of one trace that fall inside a window into a new
// trace, writing each referenced String record once, ahead of its first use.
//
// A Cutter owns its offset index and emitted set for the duration of one run
// and must not be reused.
type Cutter struct {
	r      *storage.Reader
	w      *storage.Writer
	filter Filter
	log    *slog.Logger
	every  uint64

	index   *OffsetIndex
	emitted EmittedSet

	event  ftf.Event
	rec    []byte
	strRec []byte
	refs   []uint16
	stats  Stats
}

// NewCutter returns a Cutter reading r and writing w.
func NewCutter(r *storage.Reader, w *storage.Writer, opts Options) *Cutter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Filter.Unknown == "" {
		opts.Filter.Unknown = PolicyInclude
	}
	every := opts.ProgressEvery
	if every == 0 {
		every = DefaultProgressEvery
	}
	runID := uuid.NewString()
	return &Cutter{
		r:      r,
		w:      w,
		filter: opts.Filter,
		log:    logger.With("run_id", runID),
		every:  every,
		index:  NewOffsetIndex(),
		stats:  newStats(runID, opts.Filter.Window),
	}
}

// Cut runs the scan to the end of the input. The returned Stats are filled in
// as far as the run got, even on error.
func (c *Cutter) Cut() (Stats, error) {
	if !c.r.Seekable() {
		return c.stats, &IOError{Op: "open input", Err: storage.ErrNotSeekable}
	}
	if err := c.filter.Window.Validate(); err != nil {
		return c.stats, err
	}

	start := time.Now()
	c.log.Info("cutting trace", "window", c.filter.Window.String(), "unknown_events", string(c.filter.Unknown))

	err := c.scan()

	c.stats.BytesRead = c.r.Position()
	c.stats.BytesWritten = c.w.Written()
	c.stats.StringsIndexed = uint64(c.index.Len())
	c.stats.Duration = time.Since(start)
	if err != nil {
		c.log.Error("cut aborted", "offset", c.r.Position(), "err", err)
		return c.stats, err
	}
	c.stats.Digest = hex.EncodeToString(c.w.Sum())

	c.log.Info("cut complete",
		"records", c.stats.RecordsRead,
		"events_kept", c.stats.EventsKept,
		"events_dropped", c.stats.EventsDropped,
		"strings_backfilled", c.stats.StringsBackfilled,
		"bytes_written", c.stats.BytesWritten,
		"duration", c.stats.Duration,
	)
	return c.stats, nil
}

func (c *Cutter) scan() error {
	for {
		off := c.r.Position()
		h, err := c.r.ReadHeader()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return c.readErr("read header", off, nil, err)
		}

		typ, _, err := h.Classify()
		if err != nil {
			return &FormatError{Offset: off, Type: typ, HasType: true, Err: err}
		}
		c.stats.RecordsRead++

		switch typ {
		case ftf.RecordString:
			err = c.indexString(off, h)
		case ftf.RecordEvent:
			err = c.filterEvent(off, h)
		default:
			err = c.passThrough(off, h)
		}
		if err != nil {
			return err
		}

		if c.stats.RecordsRead%c.every == 0 {
			c.log.Debug("progress",
				"records", c.stats.RecordsRead,
				"offset", c.r.Position(),
				"events_kept", c.stats.EventsKept,
				"strings_backfilled", c.stats.StringsBackfilled,
			)
		}
	}
}

// indexString remembers where a string is defined and moves past it. The
// record itself is only copied once a kept event needs it.
func (c *Cutter) indexString(off int64, h ftf.Header) error {
	c.index.Put(h.StringIndex(), off)
	if err := c.r.Skip(h.PayloadLen()); err != nil {
		return c.readErr("skip string", off, &h, err)
	}
	return nil
}

func (c *Cutter) filterEvent(off int64, h ftf.Header) error {
	n := int(h.Len())
	if cap(c.rec) < n {
		c.rec = make([]byte, n)
	}
	c.rec = c.rec[:n]
	copy(c.rec, c.r.HeaderBytes())
	if err := c.r.ReadFull(c.rec[ftf.WordSize:]); err != nil {
		return c.readErr("read event", off, &h, err)
	}
	if err := c.event.Decode(c.rec); err != nil {
		return &FormatError{Offset: off, Type: ftf.RecordEvent, HasType: true, Err: err}
	}
	c.stats.EventsSeen++
	if !c.event.Type.Windowed() {
		c.stats.UnknownEvents++
	}

	switch c.filter.Decide(&c.event) {
	case Drop:
		c.stats.EventsDropped++
		return nil
	case Reject:
		return &FormatError{
			Offset:  off,
			Type:    ftf.RecordEvent,
			HasType: true,
			Err:     fmt.Errorf("%w: %s", ErrUnknownEvent, c.event.Type),
		}
	}

	c.refs = c.event.AppendIndexedRefs(c.refs[:0])
	for _, idx := range c.refs {
		if err := c.resolve(idx, off); err != nil {
			return err
		}
	}
	if err := c.write(c.rec); err != nil {
		return err
	}
	c.stats.EventsKept++
	c.stats.KeptByType[c.event.Type.String()]++
	return nil
}

// resolve writes the String record defining idx unless it is already in the
// output. The record is read through the positional handle, so the scan
// cursor stays where it was.
func (c *Cutter) resolve(idx uint16, eventOff int64) error {
	if c.emitted.Contains(idx) {
		return nil
	}
	off, ok := c.index.Lookup(idx)
	if !ok {
		return &DanglingReferenceError{Index: idx, EventOffset: eventOff}
	}

	rec, err := c.r.RecordAt(off, c.strRec)
	c.strRec = rec
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ftf.ErrZeroSize) || errors.Is(err, ftf.ErrReservedType) {
			return &FormatError{Offset: off, Type: ftf.RecordString, HasType: true, Err: err}
		}
		return &IOError{Op: "read string", Offset: off, Err: err}
	}
	if err := c.write(rec); err != nil {
		return err
	}
	c.emitted.Add(idx)
	c.stats.StringsBackfilled++
	return nil
}

func (c *Cutter) passThrough(off int64, h ftf.Header) error {
	if err := c.write(c.r.HeaderBytes()); err != nil {
		return err
	}
	if err := c.r.CopyN(c.w, h.PayloadLen()); err != nil {
		return c.readErr("copy record", off, &h, err)
	}
	c.stats.PassthroughRecords++
	return nil
}

func (c *Cutter) write(p []byte) error {
	if _, err := c.w.Write(p); err != nil {
		return &IOError{Op: "write output", Offset: c.w.Written(), Err: err}
	}
	return nil
}

// readErr classifies a failed read: running out of input inside a record is
// a format problem, anything else is the storage failing.
func (c *Cutter) readErr(op string, off int64, h *ftf.Header, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fe := &FormatError{Offset: off, Err: fmt.Errorf("%w: %w", ftf.ErrTruncated, err)}
		if h != nil {
			fe.Type, fe.HasType = h.Type(), true
		}
		return fe
	}
	return &IOError{Op: op, Offset: off, Err: err}
}
