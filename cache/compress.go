package cache

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Codec identifies the lossless transform applied to a cache payload.
// Values are persisted in the header.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZlib
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZlib:
		return "zlib"
	case CodecZstd:
		return "zstd"
	}
	return fmt.Sprintf("Codec(%d)", uint8(c))
}

// Compressor is a lossless byte transform for cache payloads.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Codec() Codec
}

// NewCompressor returns the compressor named "zlib", "zstd" or "none".
// The empty name selects "none".
func NewCompressor(name string) (Compressor, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "zlib":
		return zlibCompressor{}, nil
	case "zstd":
		return zstdCompressor{}, nil
	}
	return nil, fmt.Errorf("cache: unknown compressor %q", name)
}

func compressorFor(c Codec) (Compressor, error) {
	switch c {
	case CodecZlib:
		return zlibCompressor{}, nil
	case CodecZstd:
		return zstdCompressor{}, nil
	}
	return nil, fmt.Errorf("%w: unknown payload codec %v", ErrCorruptPayload, c)
}

type zlibCompressor struct{}

func (zlibCompressor) Codec() Codec { return CodecZlib }

func (zlibCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

var zstdEncPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		)
		if err != nil {
			panic(err)
		}
		return enc
	},
}

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(err)
		}
		return dec
	},
}

type zstdCompressor struct{}

func (zstdCompressor) Codec() Codec { return CodecZstd }

func (zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zstdEncPool.Get().(*zstd.Encoder)
	out := enc.EncodeAll(data, nil)
	zstdEncPool.Put(enc)
	return out, nil
}

func (zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zstdDecPool.Get().(*zstd.Decoder)
	out, err := dec.DecodeAll(data, nil)
	zstdDecPool.Put(dec)
	return out, err
}
