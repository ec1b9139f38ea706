package ftf

import "fmt"

const (
	inlineFlag  = 0x8000
	maxIndex    = 0x7FFF
	maxInlineSz = 0x7FFF
)

// StringRef is either an index into the string table or inline text.
// The zero value is the empty string reference.
type StringRef struct {
	Index  uint16
	Inline string
	inline bool
}

// Ref returns a reference to string table entry idx.
func Ref(idx uint16) StringRef {
	return StringRef{Index: idx}
}

// InlineString returns a reference carrying s in the record itself.
func InlineString(s string) StringRef {
	if s == "" {
		return StringRef{}
	}
	return StringRef{Inline: s, inline: true}
}

// IsIndexed reports whether the reference needs a String record to resolve.
func (r StringRef) IsIndexed() bool {
	return !r.inline && r.Index != 0
}

func (r StringRef) IsInline() bool {
	return r.inline
}

func (r StringRef) String() string {
	switch {
	case r.inline:
		return fmt.Sprintf("%q", r.Inline)
	case r.Index == 0:
		return `""`
	default:
		return fmt.Sprintf("#%d", r.Index)
	}
}

// field returns the 16-bit encoding used in headers.
func (r StringRef) field() uint16 {
	if r.inline {
		return inlineFlag | uint16(len(r.Inline))
	}
	return r.Index
}

// words returns the number of payload words taken by an inline reference.
func (r StringRef) words() int {
	if !r.inline {
		return 0
	}
	return paddedWords(len(r.Inline))
}

func paddedWords(n int) int {
	return (n + WordSize - 1) / WordSize
}

// StringRecord defines a string table entry.
type StringRecord struct {
	Index uint16
	Value string
}

// DecodeString decodes a complete String record.
func DecodeString(rec []byte) (StringRecord, error) {
	d, err := newDecoder(rec, RecordString)
	if err != nil {
		return StringRecord{}, err
	}
	n := d.h.StringLen()
	s, err := d.text(n)
	if err != nil {
		return StringRecord{}, err
	}
	return StringRecord{Index: d.h.StringIndex(), Value: s}, nil
}

// AppendTo appends the encoded record to dst.
func (s StringRecord) AppendTo(dst []byte) ([]byte, error) {
	if s.Index == 0 || s.Index > maxIndex {
		return dst, fmt.Errorf("%w: string index %d out of range", ErrMalformed, s.Index)
	}
	if len(s.Value) > maxInlineSz {
		return dst, fmt.Errorf("%w: string of %d bytes", ErrMalformed, len(s.Value))
	}
	size := 1 + paddedWords(len(s.Value))
	h := makeHeader(RecordString, size) |
		Header(s.Index)<<16 |
		Header(len(s.Value))<<32
	e := encoder{buf: dst}
	e.word(uint64(h))
	e.text(s.Value)
	return e.buf, nil
}
