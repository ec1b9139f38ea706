package ftf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// decoder walks the payload words of one record.
type decoder struct {
	h   Header
	rec []byte
	off int
}

func newDecoder(rec []byte, want RecordType) (*decoder, error) {
	if len(rec) < WordSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(rec))
	}
	h := ParseHeader(rec)
	t, size, err := h.Classify()
	if err != nil {
		return nil, err
	}
	if t != want {
		return nil, fmt.Errorf("%w: expected %s record, got %s", ErrMalformed, want, t)
	}
	if uint64(len(rec)) < size*WordSize {
		return nil, fmt.Errorf("%w: header declares %d words, have %d bytes", ErrTruncated, size, len(rec))
	}
	return &decoder{h: h, rec: rec[:size*WordSize], off: WordSize}, nil
}

func (d *decoder) remaining() int {
	return len(d.rec) - d.off
}

func (d *decoder) word() (uint64, error) {
	if d.remaining() < WordSize {
		return 0, fmt.Errorf("%w: payload overrun at byte %d", ErrMalformed, d.off)
	}
	v := binary.LittleEndian.Uint64(d.rec[d.off:])
	d.off += WordSize
	return v, nil
}

// text reads n bytes of padded text.
func (d *decoder) text(n int) (string, error) {
	padded := paddedWords(n) * WordSize
	if d.remaining() < padded {
		return "", fmt.Errorf("%w: string of %d bytes overruns record", ErrMalformed, n)
	}
	s := string(d.rec[d.off : d.off+n])
	d.off += padded
	return s, nil
}

// stringRef resolves a 16-bit reference field, consuming inline text.
func (d *decoder) stringRef(field uint16) (StringRef, error) {
	if field&inlineFlag == 0 {
		return StringRef{Index: field}, nil
	}
	s, err := d.text(int(field &^ inlineFlag))
	if err != nil {
		return StringRef{}, err
	}
	return InlineString(s), nil
}

// encoder appends words to a buffer.
type encoder struct {
	buf []byte
}

func (e *encoder) word(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *encoder) text(s string) {
	e.buf = append(e.buf, s...)
	if pad := paddedWords(len(s))*WordSize - len(s); pad > 0 {
		e.buf = append(e.buf, make([]byte, pad)...)
	}
}

func (e *encoder) stringRef(r StringRef) {
	if r.inline {
		e.text(r.Inline)
	}
}

func float64bits(f float64) uint64 { return math.Float64bits(f) }

func float64frombits(v uint64) float64 { return math.Float64frombits(v) }
