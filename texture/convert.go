package texture

import "fmt"

// channel offsets of red, green and blue within a pixel of each layout
var rgbOffsets = map[Format][3]int{
	FormatRGB:  {0, 1, 2},
	FormatRGBA: {0, 1, 2},
	FormatBGR:  {2, 1, 0},
	FormatBGRA: {2, 1, 0},
}

// Convert rewrites the buffer into the target layout. The result is tightly
// packed. Converting to the current layout is a no-op.
//
// Supported: RGB(A) <-> BGR(A) reordering, any color layout to RG, any
// color or RG layout to Luminance.
func (b *Buffer) Convert(to Format) error {
	if b.Format == to {
		return nil
	}
	if b.Flags.Has(FlagCompressed) || b.Format.BlockSize() != 0 {
		return fmt.Errorf("convert %q: %v data is block compressed", b.Name, b.Format)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	var pixel func(src []byte, dst []byte)
	switch to {
	case FormatRGB, FormatRGBA, FormatBGR, FormatBGRA:
		from, ok := rgbOffsets[b.Format]
		if !ok || b.Format.Channels() != to.Channels() {
			return fmt.Errorf("convert %q: %v to %v unsupported", b.Name, b.Format, to)
		}
		dstOff := rgbOffsets[to]
		pixel = func(src, dst []byte) {
			dst[dstOff[0]] = src[from[0]]
			dst[dstOff[1]] = src[from[1]]
			dst[dstOff[2]] = src[from[2]]
			if len(dst) == 4 {
				dst[3] = src[3]
			}
		}

	case FormatRG:
		switch b.Format {
		case FormatLuminance:
			pixel = func(src, dst []byte) { dst[0], dst[1] = src[0], src[0] }
		default:
			off, ok := rgbOffsets[b.Format]
			if !ok {
				return fmt.Errorf("convert %q: %v to %v unsupported", b.Name, b.Format, to)
			}
			pixel = func(src, dst []byte) { dst[0], dst[1] = src[off[0]], src[off[1]] }
		}

	case FormatLuminance:
		switch b.Format {
		case FormatRG:
			pixel = func(src, dst []byte) { dst[0] = src[0] }
		default:
			off, ok := rgbOffsets[b.Format]
			if !ok {
				return fmt.Errorf("convert %q: %v to %v unsupported", b.Name, b.Format, to)
			}
			pixel = func(src, dst []byte) {
				dst[0] = luma(src[off[0]], src[off[1]], src[off[2]])
			}
		}

	default:
		return fmt.Errorf("convert %q: %v to %v unsupported", b.Name, b.Format, to)
	}

	srcBPP := b.BPP()
	dstBPP := to.Channels()
	out := make([]byte, b.Width*b.Height*dstBPP)
	for y := 0; y < b.Height; y++ {
		row := b.Data[y*b.Pitch:]
		for x := 0; x < b.Width; x++ {
			d := (y*b.Width + x) * dstBPP
			pixel(row[x*srcBPP:x*srcBPP+srcBPP], out[d:d+dstBPP])
		}
	}

	b.Data = out
	b.Format = to
	b.Pitch = b.Width * dstBPP
	return nil
}

// luma is the Rec. 601 weighting in 8.8 fixed point.
func luma(r, g, b byte) byte {
	return byte((77*uint32(r) + 150*uint32(g) + 29*uint32(b) + 128) >> 8)
}
