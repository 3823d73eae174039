package format

import (
	"errors"
	"fmt"

	"texcache/dxt"
	"texcache/texture"
)

// ErrUnsupported is returned when no format the backend supports can hold
// the buffer. It only happens for sources that are block compressed on disk.
var ErrUnsupported = errors.New("format: unsupported")

// onDisk maps block formats read from files to the formats they upload as.
var onDisk = map[texture.Format]ID{
	texture.FormatDXT1: RGBA_S3TC_DXT1,
	texture.FormatDXT3: RGBA_S3TC_DXT3,
	texture.FormatDXT5: RGBA_S3TC_DXT5,
	texture.FormatBC4U: RED_RGTC1,
	texture.FormatBC4S: SIGNED_RED_RGTC1,
	texture.FormatBC5U: RED_GREEN_RGTC2,
	texture.FormatBC5S: SIGNED_RED_GREEN_RGTC2,
}

type rawFormat struct {
	layout   Layout
	dataType DataType
	target   ID
}

var raw = map[texture.Format]rawFormat{
	texture.FormatRGBA:      {LayoutRGBA, UnsignedInt8888Rev, RGBA},
	texture.FormatRGB:       {LayoutRGB, UnsignedByte, RGBA},
	texture.FormatBGRA:      {LayoutBGRA, UnsignedInt8888Rev, RGBA},
	texture.FormatBGR:       {LayoutBGR, UnsignedByte, RGBA},
	texture.FormatRG:        {LayoutRG, UnsignedByte, RG8},
	texture.FormatLuminance: {LayoutRED, UnsignedByte, RED},
}

// Negotiate picks how buf is uploaded given the backend capabilities.
// compress enables the compressed formats; the buffer's FlagNoCompress
// overrides it.
//
// Normal maps are converted to RG and greyscale sources to luminance, and
// BGR(A) data is reordered to RGB(A) before a compressed target is chosen.
// Those conversions modify buf.
//
// For decoded sources the result always names a supported format, falling
// back to an uncompressed one. Block-compressed sources are mapped as they
// are and fail with ErrUnsupported when the capability is missing.
func Negotiate(buf *texture.Buffer, caps Capabilities, compress bool) (Query, error) {
	if buf.Flags.Has(texture.FlagCompressed) {
		id, ok := onDisk[buf.Format]
		if !ok {
			return Query{}, fmt.Errorf("%w: %q is stored as %v", ErrUnsupported, buf.Name, buf.Format)
		}
		if !Supported(id, caps) {
			return Query{}, fmt.Errorf("%w: %q needs %s for %v", ErrUnsupported, buf.Name, id.Capability(), id)
		}
		return Query{Layout: LayoutRGBA, DataType: UnsignedByte, Target: id}, nil
	}

	switch {
	case buf.Flags.Has(texture.FlagNormal):
		if err := buf.Convert(texture.FormatRG); err != nil {
			return Query{}, fmt.Errorf("normal map: %w", err)
		}
	case buf.Flags.Has(texture.FlagGrey):
		if err := buf.Convert(texture.FormatLuminance); err != nil {
			return Query{}, fmt.Errorf("greyscale: %w", err)
		}
	}

	if compress && !buf.Flags.Has(texture.FlagNoCompress) && anyCompression(caps) {
		if q, ok, err := compressed(buf, caps); err != nil {
			return Query{}, err
		} else if ok {
			return q, nil
		}
	}

	r, ok := raw[buf.Format]
	if !ok {
		return Query{}, fmt.Errorf("%w: %q has layout %v", ErrUnsupported, buf.Name, buf.Format)
	}
	return Query{Layout: r.layout, DataType: r.dataType, Target: r.target}, nil
}

func anyCompression(caps Capabilities) bool {
	return caps.Has(CapBPTC) || caps.Has(CapS3TC) || caps.Has(CapRGTC)
}

// compressed selects the best compressed target for the buffer's channel
// count. ok is false when no family fits, leaving the raw fallback.
func compressed(buf *texture.Buffer, caps Capabilities) (q Query, ok bool, err error) {
	switch buf.Format {
	case texture.FormatRG:
		if caps.Has(CapRGTC) {
			return Query{Layout: LayoutRG, DataType: UnsignedByte, Target: RED_GREEN_RGTC2}, true, nil
		}
		return Query{}, false, nil
	case texture.FormatLuminance:
		if caps.Has(CapRGTC) {
			return Query{Layout: LayoutRED, DataType: UnsignedByte, Target: RED_RGTC1}, true, nil
		}
		return Query{}, false, nil
	}

	if !caps.Has(CapBPTC) && !caps.Has(CapS3TC) {
		return Query{}, false, nil
	}
	switch buf.Format {
	case texture.FormatBGR:
		err = buf.Convert(texture.FormatRGB)
	case texture.FormatBGRA:
		err = buf.Convert(texture.FormatRGBA)
	}
	if err != nil {
		return Query{}, false, fmt.Errorf("reorder for compression: %w", err)
	}

	layout := LayoutRGB
	if buf.Format == texture.FormatRGBA {
		layout = LayoutRGBA
	}
	q = Query{Layout: layout, DataType: UnsignedByte}
	switch {
	case caps.Has(CapBPTC):
		q.Target = RGBA_BPTC_UNORM
	case layout == LayoutRGBA:
		q.Target = RGBA_S3TC_DXT5
	default:
		q.Target = RGBA_S3TC_DXT1
	}
	return q, true, nil
}

// BlockKind returns the software encoder kind producing id, if any.
func (id ID) BlockKind() (dxt.Kind, bool) {
	switch id {
	case RGBA_S3TC_DXT1:
		return dxt.OpaqueColor, true
	case RGBA_S3TC_DXT5:
		return dxt.ColorAlpha, true
	}
	return 0, false
}
