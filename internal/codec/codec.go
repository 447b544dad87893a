// Package codec provides zstd compression and decompression with byte
// accounting. Counters belong to each Codec; separate codecs in one process
// keep separate totals.
package codec

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/quarkdrive/quarkdrive/core"
)

// DefaultLevel is the default zstd compression level.
const DefaultLevel = 5

// streamChunkSize bounds memory on the streaming paths.
const streamChunkSize = 16 * 1024

// Counters is a snapshot of the bytes processed by a Codec.
type Counters struct {
	// OriginalBytes is the total uncompressed bytes fed to Compress and
	// CompressStream.
	OriginalBytes uint64
	// CompressedBytes is the total bytes emitted by Compress and
	// CompressStream, as observed on the output side.
	CompressedBytes uint64
}

// Ratio returns the size reduction as a percentage in [0, 100].
func (c Counters) Ratio() float64 {
	if c.OriginalBytes == 0 {
		return 0
	}
	ratio := (1 - float64(c.CompressedBytes)/float64(c.OriginalBytes)) * 100
	if ratio < 0 {
		return 0
	}
	return ratio
}

// Codec compresses and decompresses byte streams at a fixed level.
// All methods are safe for concurrent use.
type Codec struct {
	level zstd.EncoderLevel
	enc   *zstd.Encoder
	dec   *zstd.Decoder

	mu       sync.Mutex
	counters Counters
}

// New returns a Codec at the given zstd level (1-19, DefaultLevel if 0).
func New(level int) (*Codec, error) {
	if level == 0 {
		level = DefaultLevel
	}
	encLevel := zstd.EncoderLevelFromZstd(level)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	return &Codec{level: encLevel, enc: enc, dec: dec}, nil
}

// Compress returns the zstd encoding of buf.
func (c *Codec) Compress(buf []byte) []byte {
	out := c.enc.EncodeAll(buf, nil)
	c.addSample(uint64(len(buf)), uint64(len(out)))
	return out
}

// Decompress returns the decoded form of buf.
func (c *Codec) Decompress(buf []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(buf, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCodec, err)
	}
	if out == nil {
		// An empty frame decodes to nothing; return a non-nil empty slice
		// so an empty input round-trips exactly.
		out = []byte{}
	}
	return out, nil
}

// CompressStream copies r to w through a zstd encoder in 16 KiB chunks.
// The counters record the bytes actually emitted to w, not an estimate.
func (c *Codec) CompressStream(r io.Reader, w io.Writer) error {
	cw := &countingWriter{w: w}
	zw, err := zstd.NewWriter(cw, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return fmt.Errorf("create stream encoder: %w", err)
	}

	read, err := copyChunked(zw, r)
	if err != nil {
		zw.Close()
		return fmt.Errorf("compress stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush stream encoder: %w", err)
	}

	c.addSample(read, cw.n)
	return nil
}

// DecompressStream copies the zstd stream r to w in 16 KiB chunks.
func (c *Codec) DecompressStream(r io.Reader, w io.Writer) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrCodec, err)
	}
	defer zr.Close()

	if _, err := copyChunked(w, zr); err != nil {
		return fmt.Errorf("%w: %v", core.ErrCodec, err)
	}
	return nil
}

// Counters returns a snapshot of the byte counters.
func (c *Codec) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// addSample records one compression in a single critical section so the
// original and compressed totals always agree.
func (c *Codec) addSample(original, compressed uint64) {
	c.mu.Lock()
	c.counters.OriginalBytes += original
	c.counters.CompressedBytes += compressed
	c.mu.Unlock()
}

// copyChunked copies r to w with a fixed 16 KiB buffer.
func copyChunked(w io.Writer, r io.Reader) (uint64, error) {
	var total uint64
	buf := make([]byte, streamChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			written, writeErr := w.Write(buf[:n])
			if writeErr != nil {
				return total, writeErr
			}
			if written != n {
				return total, io.ErrShortWrite
			}
			total += uint64(n)
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}
