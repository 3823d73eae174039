package cache

import (
	"encoding/binary"
	"errors"
	"fmt"

	"texcache/format"
	"texcache/texture"
)

// Version is the current cache format version. Entries written with any
// other version are discarded on read.
const Version uint8 = 0x05

// HeaderSize is the encoded size of a Header: version, two 8-byte
// dimensions, two 4-byte format fields and the payload codec byte.
const HeaderSize = 1 + 8 + 8 + 4 + 4 + 1

var (
	ErrHeaderTooSmall  = errors.New("cache: header too small")
	ErrVersionMismatch = errors.New("cache: version mismatch")
	ErrCorruptPayload  = errors.New("cache: corrupt payload")
)

// Header precedes the payload of every cache file. All multi-byte fields
// are little endian.
type Header struct {
	Version        uint8
	Width          uint64
	Height         uint64
	InternalFormat format.ID
	PixelFormat    texture.Format
	// Codec is the lossless transform applied to the payload;
	// CodecNone means the payload is stored as is.
	Codec Codec
}

// NewHeader returns a current-version header for an image.
func NewHeader(width, height int, internal format.ID, pixel texture.Format) Header {
	return Header{
		Version:        Version,
		Width:          uint64(width),
		Height:         uint64(height),
		InternalFormat: internal,
		PixelFormat:    pixel,
	}
}

// Compressed reports whether the payload went through a lossless transform.
func (h Header) Compressed() bool { return h.Codec != CodecNone }

// MaxDimension bounds the width and height of a cached image.
const MaxDimension = 1 << 16

// Validate checks that h describes an image the payload can hold: a block
// compressed format and dimensions in [1, MaxDimension].
func (h Header) Validate() error {
	if !h.InternalFormat.Compressed() {
		return fmt.Errorf("%w: %v is not block compressed", ErrCorruptPayload, h.InternalFormat)
	}
	if h.Width == 0 || h.Height == 0 || h.Width > MaxDimension || h.Height > MaxDimension {
		return fmt.Errorf("%w: size %dx%d", ErrCorruptPayload, h.Width, h.Height)
	}
	return nil
}

// PayloadSize returns the minimum payload length for a block-compressed
// header, or 0 when the format is not block compressed. Dimensions are
// clamped to MaxDimension so the result cannot overflow; call Validate
// first to reject such headers.
func PayloadSize(h Header) int {
	bs := uint64(h.InternalFormat.BlockSize())
	cols := (min(h.Width, MaxDimension) + 3) / 4
	rows := (min(h.Height, MaxDimension) + 3) / 4
	return int(cols * rows * bs)
}

// Encode writes the header into the first HeaderSize bytes of b.
func (h Header) Encode(b []byte) {
	_ = b[HeaderSize-1]
	b[0] = h.Version
	binary.LittleEndian.PutUint64(b[1:], h.Width)
	binary.LittleEndian.PutUint64(b[9:], h.Height)
	binary.LittleEndian.PutUint32(b[17:], uint32(h.InternalFormat))
	binary.LittleEndian.PutUint32(b[21:], uint32(h.PixelFormat))
	b[25] = uint8(h.Codec)
}

// DecodeHeader parses a header. The version is returned as stored; it is
// checked against Version and reported with ErrVersionMismatch.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrHeaderTooSmall, len(b))
	}
	h := Header{
		Version:        b[0],
		Width:          binary.LittleEndian.Uint64(b[1:]),
		Height:         binary.LittleEndian.Uint64(b[9:]),
		InternalFormat: format.ID(binary.LittleEndian.Uint32(b[17:])),
		PixelFormat:    texture.Format(binary.LittleEndian.Uint32(b[21:])),
		Codec:          Codec(b[25]),
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrVersionMismatch, h.Version, Version)
	}
	return h, nil
}
