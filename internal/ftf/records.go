package ftf

import "fmt"

// MagicRecord is the metadata record every trace opens with: metadata type 4
// (trace info), trace info type 0, magic value 0x16547846.
const MagicRecord Header = 0x0016547846040010

// IsMagic reports whether h is the trace magic number record.
func (h Header) IsMagic() bool {
	return h == MagicRecord
}

// AppendMagic appends the magic number record to dst.
func AppendMagic(dst []byte) []byte {
	e := encoder{buf: dst}
	e.word(uint64(MagicRecord))
	return e.buf
}

// AppendInitialization appends an Initialization record declaring the tick
// rate of every timestamp that follows.
func AppendInitialization(dst []byte, ticksPerSecond uint64) []byte {
	e := encoder{buf: dst}
	e.word(uint64(makeHeader(RecordInitialization, 2)))
	e.word(ticksPerSecond)
	return e.buf
}

// DecodeInitialization returns the tick rate carried by an Initialization record.
func DecodeInitialization(rec []byte) (uint64, error) {
	d, err := newDecoder(rec, RecordInitialization)
	if err != nil {
		return 0, err
	}
	return d.word()
}

// ThreadRecord binds a thread table index to a process/thread koid pair.
type ThreadRecord struct {
	Index       uint8
	ProcessKoid uint64
	ThreadKoid  uint64
}

func DecodeThread(rec []byte) (ThreadRecord, error) {
	d, err := newDecoder(rec, RecordThread)
	if err != nil {
		return ThreadRecord{}, err
	}
	t := ThreadRecord{Index: uint8(d.h >> 16)}
	if t.ProcessKoid, err = d.word(); err != nil {
		return ThreadRecord{}, err
	}
	if t.ThreadKoid, err = d.word(); err != nil {
		return ThreadRecord{}, err
	}
	return t, nil
}

func (t ThreadRecord) AppendTo(dst []byte) ([]byte, error) {
	if t.Index == 0 {
		return dst, fmt.Errorf("%w: thread index 0 is reserved", ErrMalformed)
	}
	e := encoder{buf: dst}
	e.word(uint64(makeHeader(RecordThread, 3) | Header(t.Index)<<16))
	e.word(t.ProcessKoid)
	e.word(t.ThreadKoid)
	return e.buf, nil
}

// AppendOpaque appends a record of type t whose payload is taken verbatim.
// Trailing bytes are zero-padded to a word boundary.
func AppendOpaque(dst []byte, t RecordType, payload []byte) ([]byte, error) {
	size := 1 + paddedWords(len(payload))
	if t == RecordLarge || !t.Known() || size > 0xFFF {
		return dst, fmt.Errorf("%w: cannot frame %s record of %d words", ErrMalformed, t, size)
	}
	e := encoder{buf: dst}
	e.word(uint64(makeHeader(t, size)))
	e.text(string(payload))
	return e.buf, nil
}

// AppendLarge appends a Large record (type 10) with a 32-bit size field.
func AppendLarge(dst []byte, payload []byte) []byte {
	size := uint64(1 + paddedWords(len(payload)))
	e := encoder{buf: dst}
	e.word(uint64(RecordLarge) | (size&0xFFFFFFFF)<<4)
	e.text(string(payload))
	return e.buf
}
