package dxt

import (
	"fmt"

	"texcache/math"
)

// refineIterations is the number of power-iteration steps used to find the
// principal axis of a block's colors. More steps buy little precision with
// float32 accumulators.
const refineIterations = 3

// colorLineSeed is the starting vector of the power iteration. It is not an
// eigenvector of any covariance built from a gray ramp.
var colorLineSeed = math.Vec3{X: 1, Y: 2.718281828, Z: 3.141592654}

// colorRemap maps a position along the endpoint line (0 = color0, 3 = color1)
// to the hardware palette index.
var colorRemap = [4]uint32{0, 2, 3, 1}

// alphaRemap maps a scaled alpha (0 = alpha1 .. 7 = alpha0) to the hardware
// palette index of the 8-value alpha mode.
var alphaRemap = [8]uint8{1, 7, 6, 5, 4, 3, 2, 0}

// block is one 4×4 tile of RGBA texels, row major.
type block [16][4]uint8

// Encode compresses a width×height image whose rows are stride bytes apart
// and whose pixels have the given number of 8-bit channels (1 to 4).
//
// One- and two-channel sources are treated as luminance and
// luminance-alpha. Sources without an alpha channel encode as fully
// opaque. Edge blocks are padded by repeating the last valid row and column.
func Encode(pix []byte, width, height, stride, channels int, kind Kind) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidImage, width, height)
	}
	if channels < 1 || channels > 4 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidImage, channels)
	}
	if kind != OpaqueColor && kind != ColorAlpha {
		return nil, fmt.Errorf("%w: unknown block kind %v", ErrInvalidImage, kind)
	}
	if stride < width*channels {
		return nil, fmt.Errorf("%w: stride %d below row size %d", ErrInvalidImage, stride, width*channels)
	}
	if need := (height-1)*stride + width*channels; len(pix) < need {
		return nil, fmt.Errorf("%w: %d bytes of pixel data, need %d", ErrInvalidImage, len(pix), need)
	}

	out := make([]byte, ImageSize(width, height, kind))
	bs := kind.BlockSize()
	offset := 0
	var texels block
	for by := 0; by < height; by += 4 {
		for bx := 0; bx < width; bx += 4 {
			gather(&texels, pix, bx, by, width, height, stride, channels)
			dst := out[offset : offset+bs]
			if kind == ColorAlpha {
				encodeAlpha(&texels).pack(dst[:8])
				dst = dst[8:]
			}
			encodeColor(&texels).pack(dst)
			offset += bs
		}
	}
	return out, nil
}

// gather copies the block at (bx, by) into texels, clamping coordinates to
// the image so partial edge blocks repeat their last row and column.
func gather(texels *block, pix []byte, bx, by, width, height, stride, channels int) {
	hasAlpha := channels%2 == 0
	for y := 0; y < 4; y++ {
		sy := min(by+y, height-1)
		for x := 0; x < 4; x++ {
			sx := min(bx+x, width-1)
			src := pix[sy*stride+sx*channels:]
			t := &texels[y*4+x]
			if channels < 3 {
				t[0], t[1], t[2] = src[0], src[0], src[0]
			} else {
				t[0], t[1], t[2] = src[0], src[1], src[2]
			}
			t[3] = 255
			if hasAlpha {
				t[3] = src[channels-1]
			}
		}
	}
}

// endpoints fits a line through the block's colors and returns the two
// extreme projections quantized to 5:6:5, ordered so color0 >= color1.
func endpoints(texels *block) (uint16, uint16) {
	var points [16]math.Vec3
	for i := range texels {
		points[i] = math.Vec3{X: float32(texels[i][0]), Y: float32(texels[i][1]), Z: float32(texels[i][2])}
	}
	mean, cov := math.Covariance(points[:])
	dir := cov.PowerIterate(colorLineSeed, refineIterations)

	length := 1 / (0.00001 + dir.LengthSqr())
	dotMax := dir.Dot(points[0])
	dotMin := dotMax
	for _, p := range points[1:] {
		d := dir.Dot(p)
		if d < dotMin {
			dotMin = d
		} else if d > dotMax {
			dotMax = d
		}
	}
	center := dir.Dot(mean)
	dotMin = (dotMin - center) * length
	dotMax = (dotMax - center) * length

	hi := mean.Add(dir.Mul(dotMax))
	lo := mean.Add(dir.Mul(dotMin))
	i := Pack565(clampByte(hi.X), clampByte(hi.Y), clampByte(hi.Z))
	j := Pack565(clampByte(lo.X), clampByte(lo.Y), clampByte(lo.Z))
	if i >= j {
		return i, j
	}
	return j, i
}

func encodeColor(texels *block) ColorBlock {
	c0, c1 := endpoints(texels)
	r0, g0, b0 := Unpack565(c0)
	r1, g1, b1 := Unpack565(c1)
	start := math.Vec3{X: float32(r0), Y: float32(g0), Z: float32(b0)}
	end := math.Vec3{X: float32(r1), Y: float32(g1), Z: float32(b1)}

	line := end.Sub(start)
	if length := line.LengthSqr(); length > 0 {
		line = line.Mul(1 / length)
	}
	offset := line.Dot(start)

	cb := ColorBlock{Color0: c0, Color1: c1}
	for i := range texels {
		p := math.Vec3{X: float32(texels[i][0]), Y: float32(texels[i][1]), Z: float32(texels[i][2])}
		pos := int(3*(line.Dot(p)-offset) + 0.5)
		pos = max(0, min(pos, 3))
		cb.Indices |= colorRemap[pos] << (2 * uint(i))
	}
	return cb
}

// encodeAlpha uses the literal alpha extremes as endpoints; alpha is scalar
// so no line fit is needed.
func encodeAlpha(texels *block) AlphaBlock {
	hi, lo := texels[0][3], texels[0][3]
	for i := 1; i < 16; i++ {
		a := texels[i][3]
		if a > hi {
			hi = a
		}
		if a < lo {
			lo = a
		}
	}

	ab := AlphaBlock{Alpha0: hi, Alpha1: lo}
	var scale float32
	if hi != lo {
		scale = 7.9999 / float32(hi-lo)
	}
	for i := range texels {
		step := int(float32(texels[i][3]-lo)*scale) & 7
		ab.Indices |= uint64(alphaRemap[step]) << (3 * uint(i))
	}
	return ab
}

// clampByte rounds v to the nearest integer (truncating toward zero after
// adding one half) and clamps it to [0, 255].
func clampByte(v float32) uint8 {
	n := int(0.5 + v)
	return uint8(max(0, min(n, 255)))
}
