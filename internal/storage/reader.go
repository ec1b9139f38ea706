package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/coffersTech/ftfcut/internal/ftf"
	"github.com/klauspost/compress/zstd"
)

// DefaultBufferSize is used when a caller passes a non-positive buffer size.
const DefaultBufferSize = 1 << 20

var ErrNotSeekable = errors.New("storage: input does not support random access")

// zstdMagic opens every zstd frame.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Reader is a cursor over a trace stream.
//
// The sequential cursor serves the forward scan. When the input supports
// random access, RecordAt reads whole records through a separate positional
// handle, so lookups never disturb the scan position.
type Reader struct {
	src    io.ReaderAt // nil for stream inputs
	br     *bufio.Reader
	pos    int64
	closer func() error
	hdr    [ftf.WordSize]byte
}

// NewReader returns a Reader over random-access input.
func NewReader(src io.ReaderAt, bufSize int) *Reader {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	r := &Reader{src: src}
	r.br = bufio.NewReaderSize(io.NewSectionReader(src, 0, math.MaxInt64), bufSize)
	return r
}

// NewStreamReader returns a sequential-only Reader.
func NewStreamReader(rd io.Reader, bufSize int) *Reader {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Reader{br: bufio.NewReaderSize(rd, bufSize)}
}

// Open opens a trace file. Plain files get random access; zstd-compressed
// files are decoded on the fly and can only be scanned sequentially.
func Open(path string, bufSize int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	magic := make([]byte, len(zstdMagic))
	n, err := f.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, err
	}

	if n == len(zstdMagic) && bytes.Equal(magic, zstdMagic) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		r := NewStreamReader(dec, bufSize)
		r.closer = func() error {
			dec.Close()
			return f.Close()
		}
		return r, nil
	}

	r := NewReader(f, bufSize)
	r.closer = f.Close
	return r, nil
}

// Close releases the underlying file, if the Reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c()
}

// Seekable reports whether SeekTo and RecordAt are available.
func (r *Reader) Seekable() bool {
	return r.src != nil
}

// Position returns the byte offset of the sequential cursor.
func (r *Reader) Position() int64 {
	return r.pos
}

// ReadHeader reads the next record header. It returns io.EOF when the input
// ends cleanly on a record boundary and io.ErrUnexpectedEOF when 1 to 7
// bytes remain.
func (r *Reader) ReadHeader() (ftf.Header, error) {
	n, err := io.ReadFull(r.br, r.hdr[:])
	r.pos += int64(n)
	if err != nil {
		return 0, err
	}
	return ftf.ParseHeader(r.hdr[:]), nil
}

// HeaderBytes returns the raw bytes of the header last read.
func (r *Reader) HeaderBytes() []byte {
	return r.hdr[:]
}

// ReadFull fills p from the sequential cursor. A short read, including one
// of zero bytes, is reported as io.ErrUnexpectedEOF.
func (r *Reader) ReadFull(p []byte) error {
	n, err := io.ReadFull(r.br, p)
	r.pos += int64(n)
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Skip advances the cursor by n bytes without returning them.
func (r *Reader) Skip(n int64) error {
	for n > 0 {
		chunk := n
		if chunk > math.MaxInt32 {
			chunk = math.MaxInt32
		}
		d, err := r.br.Discard(int(chunk))
		r.pos += int64(d)
		n -= int64(d)
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

// CopyN streams the next n bytes to w.
func (r *Reader) CopyN(w io.Writer, n int64) error {
	c, err := io.CopyN(w, r.br, n)
	r.pos += c
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// SeekTo moves the sequential cursor to an absolute offset.
func (r *Reader) SeekTo(off int64) error {
	if r.src == nil {
		return ErrNotSeekable
	}
	if off < 0 {
		return fmt.Errorf("storage: negative offset %d", off)
	}
	r.br.Reset(io.NewSectionReader(r.src, off, math.MaxInt64))
	r.pos = off
	return nil
}

// SeekRelative moves the sequential cursor by delta bytes. Forward moves
// within the buffer avoid a refill.
func (r *Reader) SeekRelative(delta int64) error {
	if delta >= 0 && delta <= int64(r.br.Buffered()) {
		return r.Skip(delta)
	}
	return r.SeekTo(r.pos + delta)
}

// RecordAt reads the complete record starting at off into dst, growing it as
// needed, and returns the filled slice. The sequential cursor is untouched.
func (r *Reader) RecordAt(off int64, dst []byte) ([]byte, error) {
	if r.src == nil {
		return dst, ErrNotSeekable
	}
	var hdr [ftf.WordSize]byte
	if err := readFullAt(r.src, hdr[:], off); err != nil {
		return dst, err
	}
	h := ftf.ParseHeader(hdr[:])
	if _, _, err := h.Classify(); err != nil {
		return dst, err
	}
	n := h.Len()
	if int64(cap(dst)) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	copy(dst, hdr[:])
	if err := readFullAt(r.src, dst[ftf.WordSize:], off+ftf.WordSize); err != nil {
		return dst, err
	}
	return dst, nil
}

func readFullAt(src io.ReaderAt, p []byte, off int64) error {
	n, err := src.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
