package texture

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DDSMagic is the byte string prefix of every DDS file.
const DDSMagic = "DDS "

const (
	ddsHeaderSize   = 124
	ddsDataOffset   = 4 + ddsHeaderSize
	ddsPixelFourCC  = 0x4
	ddsFlagMipCount = 0x20000
)

var (
	ErrNotADDSFile       = errors.New("dds: not a DDS file")
	ErrUnsupportedFourCC = errors.New("dds: unsupported pixel format")
	ErrTruncatedDDS      = errors.New("dds: truncated image data")
)

var ddsFourCC = map[string]Format{
	"DXT1": FormatDXT1,
	"DXT3": FormatDXT3,
	"DXT5": FormatDXT5,
	"ATI1": FormatBC4U,
	"BC4U": FormatBC4U,
	"BC4S": FormatBC4S,
	"ATI2": FormatBC5U,
	"BC5U": FormatBC5U,
	"BC5S": FormatBC5S,
}

// IsDDS reports whether data starts with the DDS magic.
func IsDDS(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == DDSMagic
}

// DecodeDDS reads a block-compressed DDS image and its mip chain. Mip
// levels that are not fully present in the file are dropped; a missing base
// level is an error.
func DecodeDDS(name string, data []byte) (*Buffer, error) {
	if len(data) < ddsDataOffset || !IsDDS(data) {
		return nil, ErrNotADDSFile
	}
	le := binary.LittleEndian
	if le.Uint32(data[4:]) != ddsHeaderSize {
		return nil, ErrNotADDSFile
	}
	flags := le.Uint32(data[8:])
	height := int(le.Uint32(data[12:]))
	width := int(le.Uint32(data[16:]))
	mips := 1
	if flags&ddsFlagMipCount != 0 {
		mips = max(1, int(le.Uint32(data[28:])))
	}
	if le.Uint32(data[80:])&ddsPixelFourCC == 0 {
		return nil, fmt.Errorf("%w: uncompressed DDS", ErrUnsupportedFourCC)
	}
	fourCC := string(data[84:88])
	format, ok := ddsFourCC[fourCC]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFourCC, fourCC)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("dds %q: invalid size %dx%d", name, width, height)
	}

	payload := data[ddsDataOffset:]
	blockSize := format.BlockSize()
	total := 0
	levels := 0
	w, h := width, height
	for ; levels < mips; levels++ {
		size := ((w + 3) / 4) * ((h + 3) / 4) * blockSize
		if total+size > len(payload) {
			break
		}
		total += size
		w = max(w>>1, 1)
		h = max(h>>1, 1)
	}
	if levels == 0 {
		return nil, ErrTruncatedDDS
	}

	return &Buffer{
		Name:   name,
		Data:   payload[:total],
		Width:  width,
		Height: height,
		Format: format,
		Flags:  FlagCompressed,
		Mips:   levels,
	}, nil
}
