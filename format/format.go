// Package format names the GPU texture formats a buffer can be uploaded as,
// the capabilities that gate them, and picks the best one for a buffer.
package format

import "fmt"

// ID is a GPU internal format identifier. Values match the OpenGL enums so
// they can be handed to the driver and stored in cache headers unchanged.
type ID uint32

const (
	RGBA ID = 0x1908
	RGB  ID = 0x1907
	RG8  ID = 0x822B
	RED  ID = 0x1903

	RGBA_S3TC_DXT1         ID = 0x83F1
	RGBA_S3TC_DXT3         ID = 0x83F2
	RGBA_S3TC_DXT5         ID = 0x83F3
	RED_RGTC1              ID = 0x8DBB
	SIGNED_RED_RGTC1       ID = 0x8DBC
	RED_GREEN_RGTC2        ID = 0x8DBD
	SIGNED_RED_GREEN_RGTC2 ID = 0x8DBE
	RGBA_BPTC_UNORM        ID = 0x8E8C
	RGB_BPTC_SIGNED_FLOAT  ID = 0x8E8E
)

// Layout is the channel order of pixel data handed to a raw upload.
type Layout uint32

const (
	LayoutRED  Layout = 0x1903
	LayoutRG   Layout = 0x8227
	LayoutRGB  Layout = 0x1907
	LayoutRGBA Layout = 0x1908
	LayoutBGR  Layout = 0x80E0
	LayoutBGRA Layout = 0x80E1
)

// Channels returns the number of bytes per pixel of 8-bit data in l.
func (l Layout) Channels() int {
	switch l {
	case LayoutRED:
		return 1
	case LayoutRG:
		return 2
	case LayoutRGB, LayoutBGR:
		return 3
	case LayoutRGBA, LayoutBGRA:
		return 4
	}
	return 0
}

// DataType is the component type of pixel data handed to a raw upload.
type DataType uint32

const (
	UnsignedByte       DataType = 0x1401
	UnsignedInt8888Rev DataType = 0x8367
)

// Capability is a driver extension gating a compressed format family.
type Capability string

const (
	CapS3TC Capability = "GL_EXT_texture_compression_s3tc"
	CapRGTC Capability = "GL_EXT_texture_compression_rgtc"
	CapBPTC Capability = "GL_ARB_texture_compression_bptc"
)

// Capabilities reports which capabilities the active backend supports.
type Capabilities interface {
	Has(c Capability) bool
}

// CapabilitySet is a fixed set of capabilities.
type CapabilitySet map[Capability]bool

func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// NewCapabilitySet returns a set holding caps.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

type info struct {
	name      string
	cap       Capability // empty for formats every backend supports
	blockSize int        // 0 for uncompressed formats
}

var infos = map[ID]info{
	RGBA:                   {"RGBA", "", 0},
	RGB:                    {"RGB", "", 0},
	RG8:                    {"RG8", "", 0},
	RED:                    {"RED", "", 0},
	RGBA_S3TC_DXT1:         {"RGBA_S3TC_DXT1", CapS3TC, 8},
	RGBA_S3TC_DXT3:         {"RGBA_S3TC_DXT3", CapS3TC, 16},
	RGBA_S3TC_DXT5:         {"RGBA_S3TC_DXT5", CapS3TC, 16},
	RED_RGTC1:              {"RED_RGTC1", CapRGTC, 8},
	SIGNED_RED_RGTC1:       {"SIGNED_RED_RGTC1", CapRGTC, 8},
	RED_GREEN_RGTC2:        {"RED_GREEN_RGTC2", CapRGTC, 16},
	SIGNED_RED_GREEN_RGTC2: {"SIGNED_RED_GREEN_RGTC2", CapRGTC, 16},
	RGBA_BPTC_UNORM:        {"RGBA_BPTC_UNORM", CapBPTC, 16},
	RGB_BPTC_SIGNED_FLOAT:  {"RGB_BPTC_SIGNED_FLOAT", CapBPTC, 16},
}

func (id ID) String() string {
	if i, ok := infos[id]; ok {
		return i.name
	}
	return fmt.Sprintf("0x%04X", uint32(id))
}

// Known reports whether id is one of the formats this package handles.
func (id ID) Known() bool {
	_, ok := infos[id]
	return ok
}

// Capability returns the capability required to use id, or "" if none.
func (id ID) Capability() Capability {
	return infos[id].cap
}

// Compressed reports whether id is a block-compressed format.
func (id ID) Compressed() bool {
	return infos[id].blockSize != 0
}

// BlockSize returns the bytes per 4×4 block of a compressed format.
func (id ID) BlockSize() int {
	return infos[id].blockSize
}

// Supported reports whether caps allow uploading id.
func Supported(id ID, caps Capabilities) bool {
	if !id.Known() {
		return false
	}
	c := id.Capability()
	return c == "" || caps.Has(c)
}

// Query is the result of negotiation: how to present pixel data to the
// backend and which internal format to store it as.
type Query struct {
	Layout   Layout
	DataType DataType
	Target   ID
}

func (q Query) String() string {
	return fmt.Sprintf("%s (layout 0x%04X, type 0x%04X)", q.Target, uint32(q.Layout), uint32(q.DataType))
}
