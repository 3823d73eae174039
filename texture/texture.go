// Package texture holds CPU-side pixel buffers waiting for upload: their
// channel layout, load flags, conversions and the loaders that produce them.
package texture

import "fmt"

// Format is the channel layout (or on-disk block format) of a Buffer.
// Values are persisted in cache headers and must not be renumbered.
type Format uint32

const (
	FormatRGB Format = iota
	FormatRGBA
	FormatBGR
	FormatBGRA
	FormatRG
	FormatLuminance
	FormatDXT1
	FormatDXT3
	FormatDXT5
	FormatBC4U
	FormatBC4S
	FormatBC5U
	FormatBC5S
)

var formatNames = [...]string{
	FormatRGB:       "RGB",
	FormatRGBA:      "RGBA",
	FormatBGR:       "BGR",
	FormatBGRA:      "BGRA",
	FormatRG:        "RG",
	FormatLuminance: "LUMINANCE",
	FormatDXT1:      "DXT1",
	FormatDXT3:      "DXT3",
	FormatDXT5:      "DXT5",
	FormatBC4U:      "BC4U",
	FormatBC4S:      "BC4S",
	FormatBC5U:      "BC5U",
	FormatBC5S:      "BC5S",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// Channels returns the number of bytes per pixel of an uncompressed layout,
// or 0 for block formats.
func (f Format) Channels() int {
	switch f {
	case FormatRGB, FormatBGR:
		return 3
	case FormatRGBA, FormatBGRA:
		return 4
	case FormatRG:
		return 2
	case FormatLuminance:
		return 1
	}
	return 0
}

// BlockSize returns the byte size of one 4×4 block for block formats,
// or 0 for uncompressed layouts.
func (f Format) BlockSize() int {
	switch f {
	case FormatDXT1, FormatBC4U, FormatBC4S:
		return 8
	case FormatDXT3, FormatDXT5, FormatBC5U, FormatBC5S:
		return 16
	}
	return 0
}

// Flags describe where a buffer came from and how it may be treated.
type Flags uint8

const (
	// FlagDisk marks buffers loaded from persistent storage; only those are cached.
	FlagDisk Flags = 1 << iota
	// FlagCompressed marks buffers whose data is already block compressed.
	FlagCompressed
	// FlagNoCompress disables compression (and the cache) for this buffer.
	FlagNoCompress
	// FlagNormal marks tangent-space normal maps; they are reduced to two channels.
	FlagNormal
	// FlagGrey marks greyscale sources; they are reduced to one channel.
	FlagGrey
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Buffer is a decoded (or block-compressed) image owned by the caller.
type Buffer struct {
	Name   string
	Data   []byte
	Width  int
	Height int
	// Pitch is the row stride in bytes; it may exceed Width*BPP().
	Pitch  int
	Format Format
	Flags  Flags
	// Mips is the number of mip levels stored back to back in Data.
	// Only block-compressed buffers carry more than one.
	Mips int
	// Hash is the content hash of the source file, used as cache key.
	Hash string
}

// NewBuffer wraps tightly packed pixel data.
func NewBuffer(name string, data []byte, width, height int, format Format) *Buffer {
	return &Buffer{
		Name:   name,
		Data:   data,
		Width:  width,
		Height: height,
		Pitch:  width * format.Channels(),
		Format: format,
		Mips:   1,
	}
}

// BPP returns bytes per pixel for uncompressed buffers.
func (b *Buffer) BPP() int { return b.Format.Channels() }

// Size returns the number of bytes of image data.
func (b *Buffer) Size() int { return len(b.Data) }

// Validate checks that Data is large enough for the declared geometry.
func (b *Buffer) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("texture %q: invalid size %dx%d", b.Name, b.Width, b.Height)
	}
	if bs := b.Format.BlockSize(); bs != 0 {
		need := ((b.Width + 3) / 4) * ((b.Height + 3) / 4) * bs
		if len(b.Data) < need {
			return fmt.Errorf("texture %q: %d bytes of %s data, need %d", b.Name, len(b.Data), b.Format, need)
		}
		return nil
	}
	bpp := b.BPP()
	if bpp == 0 {
		return fmt.Errorf("texture %q: unknown format %v", b.Name, b.Format)
	}
	if b.Pitch < b.Width*bpp {
		return fmt.Errorf("texture %q: pitch %d below row size %d", b.Name, b.Pitch, b.Width*bpp)
	}
	need := (b.Height-1)*b.Pitch + b.Width*bpp
	if len(b.Data) < need {
		return fmt.Errorf("texture %q: %d bytes of pixel data, need %d", b.Name, len(b.Data), need)
	}
	return nil
}

// Unload drops the pixel data once it has been uploaded.
func (b *Buffer) Unload() {
	b.Data = nil
}
