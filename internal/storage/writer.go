package storage

import (
	"bufio"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// Compression selects the framing of the output stream.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionAuto Compression = "auto"
)

// ParseCompression validates a compression name.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case CompressionNone, CompressionZstd, CompressionAuto:
		return c, nil
	case "":
		return CompressionAuto, nil
	default:
		return "", fmt.Errorf("unknown compression %q (want none, zstd or auto)", s)
	}
}

// Resolve turns auto into a concrete choice based on the output path.
func (c Compression) Resolve(path string) Compression {
	if c != CompressionAuto {
		return c
	}
	if strings.HasSuffix(path, ".zst") {
		return CompressionZstd
	}
	return CompressionNone
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	BufferSize  int
	Compression Compression
}

// Writer is the append-only output sink. It counts and digests the bytes it
// is given before any compression is applied.
type Writer struct {
	bw     *bufio.Writer
	zw     *zstd.Encoder
	out    io.Writer
	digest hash.Hash
	n      int64
	file   *os.File
}

// NewWriter wraps w. Compression auto is treated as none.
func NewWriter(w io.Writer, opts WriterOptions) (*Writer, error) {
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	digest, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}

	tw := &Writer{bw: bufio.NewWriterSize(w, size), digest: digest}
	tw.out = tw.bw
	if opts.Compression == CompressionZstd {
		zw, err := zstd.NewWriter(tw.bw)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		tw.zw = zw
		tw.out = zw
	}
	return tw, nil
}

// Create creates (or truncates) the file at path and returns a Writer over it.
func Create(path string, opts WriterOptions) (*Writer, error) {
	opts.Compression = opts.Compression.Resolve(path)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// Write appends p to the output.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.out.Write(p)
	w.digest.Write(p[:n])
	w.n += int64(n)
	return n, err
}

// Written returns the number of uncompressed bytes accepted so far.
func (w *Writer) Written() int64 {
	return w.n
}

// Sum returns the BLAKE2b-256 digest of the uncompressed output so far.
func (w *Writer) Sum() []byte {
	return w.digest.Sum(nil)
}

// Close flushes every layer and closes the file the Writer owns. The first
// error wins, but every layer is still closed.
func (w *Writer) Close() error {
	var firstErr error
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			firstErr = err
		}
	}
	if err := w.bw.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.file = nil
	}
	return firstErr
}
