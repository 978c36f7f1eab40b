package zarr

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/qri-io/dataset/compression"
)

// numcodecs codec identifiers handled natively
const (
	CodecZlib = "zlib"
	CodecGzip = "gzip"
	CodecZstd = "zstd"
)

// CompressionMeta defines compression settings zarr-go understands. A nil
// *CompressionMeta is the JSON null compressor: chunks are stored raw.
type CompressionMeta struct {
	ID      string `json:"id"`
	Level   int    `json:"level,omitempty"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// Decompressor wraps r in a reader that yields decoded chunk bytes. Closing
// the returned reader closes r.
func (m *CompressionMeta) Decompressor(r io.ReadCloser) (io.ReadCloser, error) {
	if m == nil {
		return r, nil
	}
	switch m.ID {
	case CodecZlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, err
		}
		return chainCloser(zr, zr.Close, r.Close), nil
	case CodecGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return chainCloser(gr, gr.Close, r.Close), nil
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return chainCloser(dec, func() error { dec.Close(); return nil }, r.Close), nil
	default:
		return compression.Decompressor(m.ID, r)
	}
}

// Compressor wraps w in a writer that encodes chunk bytes. The caller must
// Close the returned writer to flush it; w itself is left open.
func (m *CompressionMeta) Compressor(w io.Writer) (io.WriteCloser, error) {
	if m == nil {
		return nopWriteCloser{w}, nil
	}
	switch m.ID {
	case CodecZlib:
		level := zlib.DefaultCompression
		if m.Level != 0 {
			level = m.Level
		}
		return zlib.NewWriterLevel(w, level)
	case CodecGzip:
		level := gzip.DefaultCompression
		if m.Level != 0 {
			level = m.Level
		}
		return gzip.NewWriterLevel(w, level)
	case CodecZstd:
		opts := []zstd.EOption{}
		if m.Level != 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(m.Level)))
		}
		return zstd.NewWriter(w, opts...)
	default:
		return nil, fmt.Errorf("%w: writing with compressor %q", ErrUnsupported, m.ID)
	}
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func chainCloser(r io.Reader, closers ...func() error) io.ReadCloser {
	return &readCloser{Reader: r, closers: closers}
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
