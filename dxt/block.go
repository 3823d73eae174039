// Package dxt encodes 4×4 pixel blocks into the S3TC DXT1 and DXT5 block
// formats and canonicalizes already-compressed images so they compress
// better with a general purpose byte compressor.
//
// Block layout (all multi-byte fields little endian):
//
//	color block (8 bytes):  color0 u16 | color1 u16 | indices u32 (2 bits per texel)
//	alpha block (8 bytes):  alpha0 u8 | alpha1 u8 | indices u48 (3 bits per texel)
//
// A DXT1 block is one color block; a DXT5 block is an alpha block followed by
// a color block.
package dxt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kind selects the block format.
type Kind int

const (
	// OpaqueColor is DXT1: 8 bytes per block, color only.
	OpaqueColor Kind = iota
	// ColorAlpha is DXT5: 16 bytes per block, interpolated alpha + color.
	ColorAlpha
)

func (k Kind) String() string {
	switch k {
	case OpaqueColor:
		return "DXT1"
	case ColorAlpha:
		return "DXT5"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// BlockSize returns the byte size of one block of kind k.
func (k Kind) BlockSize() int {
	if k == ColorAlpha {
		return 16
	}
	return 8
}

// ErrInvalidImage is returned for dimensions, channel counts or buffers the
// codec cannot work with.
var ErrInvalidImage = errors.New("dxt: invalid image")

// ImageSize returns the byte size of a width×height image of kind k.
func ImageSize(width, height int, k Kind) int {
	return ((width + 3) / 4) * ((height + 3) / 4) * k.BlockSize()
}

// ColorBlock is the unpacked 8-byte color part of a block.
type ColorBlock struct {
	Color0  uint16
	Color1  uint16
	Indices uint32
}

func unpackColor(b []byte) ColorBlock {
	_ = b[7]
	return ColorBlock{
		Color0:  binary.LittleEndian.Uint16(b[0:]),
		Color1:  binary.LittleEndian.Uint16(b[2:]),
		Indices: binary.LittleEndian.Uint32(b[4:]),
	}
}

func (c ColorBlock) pack(b []byte) {
	_ = b[7]
	binary.LittleEndian.PutUint16(b[0:], c.Color0)
	binary.LittleEndian.PutUint16(b[2:], c.Color1)
	binary.LittleEndian.PutUint32(b[4:], c.Indices)
}

// Index returns the 2-bit palette index of texel i (row major).
func (c ColorBlock) Index(i int) uint32 {
	return (c.Indices >> (2 * uint(i))) & 3
}

// AlphaBlock is the unpacked 8-byte alpha part of a DXT5 block.
type AlphaBlock struct {
	Alpha0  uint8
	Alpha1  uint8
	Indices uint64 // low 48 bits used
}

func unpackAlpha(b []byte) AlphaBlock {
	_ = b[7]
	var bits uint64
	for i := 0; i < 6; i++ {
		bits |= uint64(b[2+i]) << (8 * uint(i))
	}
	return AlphaBlock{Alpha0: b[0], Alpha1: b[1], Indices: bits}
}

func (a AlphaBlock) pack(b []byte) {
	_ = b[7]
	b[0] = a.Alpha0
	b[1] = a.Alpha1
	for i := 0; i < 6; i++ {
		b[2+i] = byte(a.Indices >> (8 * uint(i)))
	}
}

// Index returns the 3-bit palette index of texel i (row major).
func (a AlphaBlock) Index(i int) uint8 {
	return uint8((a.Indices >> (3 * uint(i))) & 7)
}

// Palette returns the eight alpha values the block's indices select.
func (a AlphaBlock) Palette() [8]uint8 {
	a0, a1 := uint32(a.Alpha0), uint32(a.Alpha1)
	var p [8]uint8
	p[0], p[1] = a.Alpha0, a.Alpha1
	if a0 > a1 {
		for i := uint32(2); i < 8; i++ {
			p[i] = uint8(((8-i)*a0 + (i-1)*a1) / 7)
		}
	} else {
		for i := uint32(2); i < 6; i++ {
			p[i] = uint8(((6-i)*a0 + (i-1)*a1) / 5)
		}
		p[6], p[7] = 0, 255
	}
	return p
}

// Pack565 quantizes an 8-bit RGB triple to 5:6:5.
func Pack565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b>>3)
}

// Unpack565 expands a 5:6:5 color to 8 bits per channel with rounding.
func Unpack565(c uint16) (r, g, b uint8) {
	r = uint8((uint32((c>>11)&0x1F)*527 + 15) >> 6)
	g = uint8((uint32((c>>5)&0x3F)*259 + 35) >> 6)
	b = uint8((uint32(c&0x1F)*527 + 15) >> 6)
	return r, g, b
}

// interpolant selects a derived palette entry of a color block.
type interpolant int

const (
	oneThird  interpolant = iota // (2·c0 + c1) / 3
	twoThirds                    // (c0 + 2·c1) / 3
	half                         // (c0 + c1) / 2
)

// interpolate computes a derived palette color and re-quantizes it to 5:6:5.
func interpolate(color0, color1 uint16, which interpolant) uint16 {
	r0, g0, b0 := Unpack565(color0)
	r1, g1, b1 := Unpack565(color1)
	mix := func(x, y uint8) uint8 {
		a, b := uint32(x), uint32(y)
		switch which {
		case oneThird:
			return uint8((2*a + b) / 3)
		case twoThirds:
			return uint8((a + 2*b) / 3)
		}
		return uint8((a + b) / 2)
	}
	return Pack565(mix(r0, r1), mix(g0, g1), mix(b0, b1))
}
