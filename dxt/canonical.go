package dxt

import "fmt"

// Uniform index grids of a color block.
const (
	allColor0 uint32 = 0x00000000
	allColor1 uint32 = 0x55555555
	allIndex2 uint32 = 0xAAAAAAAA
	allIndex3 uint32 = 0xFFFFFFFF
)

// Canonicalize rewrites degenerate blocks of a compressed image in place,
// without changing what the image decodes to, and returns how many blocks
// were modified.
//
// A block whose indices all select one palette entry becomes color0 with a
// zero index grid and color1 = 0, re-deriving color0 when the entry was an
// interpolated shade. DXT5 color blocks whose indices only use the two
// interpolants are re-expressed with those shades as endpoints, and every
// DXT5 color block ends up with color0 >= color1. DXT5 alpha blocks that
// decode to a single value become that value in alpha0 with a zero index
// grid, so fully transparent alpha is eight zero bytes.
//
// A DXT1 block in three-color mode (color0 <= color1) whose indices are all 3
// is transparent black; its canonical form is color0 = 0, color1 = 0xFFFF.
//
// The pass is local to each block and idempotent.
func Canonicalize(data []byte, width, height int, kind Kind) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: size %dx%d", ErrInvalidImage, width, height)
	}
	if kind != OpaqueColor && kind != ColorAlpha {
		return 0, fmt.Errorf("%w: unknown block kind %v", ErrInvalidImage, kind)
	}
	size := ImageSize(width, height, kind)
	if len(data) < size {
		return 0, fmt.Errorf("%w: %d bytes of %v data, need %d", ErrInvalidImage, len(data), kind, size)
	}

	bs := kind.BlockSize()
	count := 0
	for off := 0; off < size; off += bs {
		blk := data[off : off+bs]
		var before [16]byte
		copy(before[:], blk)

		if kind == ColorAlpha {
			canonicalAlpha(blk[:8])
			canonicalColor(blk[8:], true)
		} else {
			canonicalColor(blk, false)
		}

		if string(before[:bs]) != string(blk) {
			count++
		}
	}
	return count, nil
}

// canonicalColor normalizes one color block. fourColor is set for DXT5
// color blocks, which always decode in four-color mode.
func canonicalColor(b []byte, fourColor bool) {
	c := unpackColor(b)
	c0, c1 := c.Color0, c.Color1
	// DXT1 decodes in four-color mode only when color0 > color1; equal
	// endpoints select the three-color palette.
	fourMode := fourColor || c0 > c1

	switch {
	case c.Indices == allColor0:
		c.Color1 = 0

	case c.Indices == allColor1:
		c = ColorBlock{Color0: c1}

	case c.Indices == allIndex2:
		if fourMode {
			c = ColorBlock{Color0: interpolate(c0, c1, oneThird)}
		} else {
			c = ColorBlock{Color0: interpolate(c0, c1, half)}
		}

	case c.Indices == allIndex3:
		if fourMode {
			c = ColorBlock{Color0: interpolate(c0, c1, twoThirds)}
		} else {
			c = ColorBlock{Color0: 0, Color1: 0xFFFF, Indices: allIndex3}
		}

	case fourColor && c.Indices&allIndex2 == allIndex2:
		// only the interpolants are used: promote them to endpoints
		c.Color0 = interpolate(c0, c1, twoThirds)
		c.Color1 = interpolate(c0, c1, oneThird)
		c.Indices = ^c.Indices
	}

	if fourColor && c.Color0 < c.Color1 {
		c.Color0, c.Color1 = c.Color1, c.Color0
		c.Indices ^= allColor1
	}
	c.pack(b)
}

// canonicalAlpha collapses an alpha block that decodes to one value.
func canonicalAlpha(b []byte) {
	a := unpackAlpha(b)
	palette := a.Palette()
	v := palette[a.Index(0)]
	for i := 1; i < 16; i++ {
		if palette[a.Index(i)] != v {
			return
		}
	}
	AlphaBlock{Alpha0: v}.pack(b)
}
