// Package ftf implements the Fuchsia Trace Format record layout: header
// classification plus decoding and encoding of the records the cutter needs to
// look inside (strings, threads, events, metadata).
//
// Every record is a sequence of little-endian 64-bit words. The first word is
// the header; its low 4 bits give the record type and the next 12 bits the
// record size in words, header included.
package ftf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WordSize is the size of one trace word in bytes.
const WordSize = 8

var (
	ErrTruncated    = errors.New("ftf: truncated record")
	ErrReservedType = errors.New("ftf: reserved record type")
	ErrZeroSize     = errors.New("ftf: record size is zero")
	ErrMalformed    = errors.New("ftf: malformed record")
)

// RecordType is the 4-bit record type tag.
type RecordType uint8

const (
	RecordMetadata       RecordType = 0
	RecordInitialization RecordType = 1
	RecordString         RecordType = 2
	RecordThread         RecordType = 3
	RecordEvent          RecordType = 4
	RecordBlob           RecordType = 5
	RecordUserspaceObj   RecordType = 6
	RecordKernelObj      RecordType = 7
	RecordScheduling     RecordType = 8
	RecordLog            RecordType = 9
	RecordLarge          RecordType = 10
)

func (t RecordType) String() string {
	switch t {
	case RecordMetadata:
		return "metadata"
	case RecordInitialization:
		return "initialization"
	case RecordString:
		return "string"
	case RecordThread:
		return "thread"
	case RecordEvent:
		return "event"
	case RecordBlob:
		return "blob"
	case RecordUserspaceObj:
		return "userspace-object"
	case RecordKernelObj:
		return "kernel-object"
	case RecordScheduling:
		return "scheduling"
	case RecordLog:
		return "log"
	case RecordLarge:
		return "large"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(t))
	}
}

// Known reports whether the type is one the format defines a size field for.
func (t RecordType) Known() bool {
	return t <= RecordLarge
}

// Header is the leading word of a record.
type Header uint64

// ParseHeader decodes a header from the first 8 bytes of b.
func ParseHeader(b []byte) Header {
	return Header(binary.LittleEndian.Uint64(b))
}

// Bytes returns the little-endian encoding of the header.
func (h Header) Bytes() [WordSize]byte {
	var b [WordSize]byte
	binary.LittleEndian.PutUint64(b[:], uint64(h))
	return b
}

func (h Header) Type() RecordType {
	return RecordType(h & 0xF)
}

// SizeWords returns the record size in words including the header. Large
// records carry a 32-bit size field, every other type a 12-bit one.
func (h Header) SizeWords() uint64 {
	if h.Type() == RecordLarge {
		return uint64(h>>4) & 0xFFFFFFFF
	}
	return uint64(h>>4) & 0xFFF
}

// Len returns the record length in bytes, header included.
func (h Header) Len() int64 {
	return int64(h.SizeWords()) * WordSize
}

// PayloadLen returns the number of bytes following the header.
func (h Header) PayloadLen() int64 {
	return h.Len() - WordSize
}

// Classify validates the header and returns its type and size in words.
// Reserved types cannot be sized and a zero size violates the framing, so
// both are rejected.
func (h Header) Classify() (RecordType, uint64, error) {
	t := h.Type()
	if !t.Known() {
		return t, 0, fmt.Errorf("%w: tag %d", ErrReservedType, uint8(t))
	}
	size := h.SizeWords()
	if size == 0 {
		return t, 0, ErrZeroSize
	}
	return t, size, nil
}

// StringIndex returns the index defined by a String record header.
func (h Header) StringIndex() uint16 {
	return uint16(h>>16) & 0x7FFF
}

// StringLen returns the payload text length of a String record header.
func (h Header) StringLen() int {
	return int(h>>32) & 0x7FFF
}

func (h Header) EventType() EventType {
	return EventType(h>>16) & 0xF
}

func (h Header) ArgCount() int {
	return int(h>>20) & 0xF
}

func (h Header) ThreadRef() uint8 {
	return uint8(h >> 24)
}

func (h Header) CategoryRef() uint16 {
	return uint16(h >> 32)
}

func (h Header) NameRef() uint16 {
	return uint16(h >> 48)
}

func makeHeader(t RecordType, sizeWords int) Header {
	return Header(uint64(t)&0xF | (uint64(sizeWords)&0xFFF)<<4)
}
