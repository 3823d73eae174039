package texture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/gift"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadOptions tune how a source file becomes a Buffer.
type LoadOptions struct {
	// Quality scales both dimensions before upload, in (0, 1].
	Quality float32
	// Normal marks the texture as a normal map.
	Normal bool
	// NoCompress keeps the texture uncompressed and out of the cache.
	NoCompress bool
}

func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Quality: 1}
}

// LoadFile reads an image (PNG, JPEG, GIF, BMP, TIFF, WebP or DDS) from disk.
// The returned buffer is flagged as disk-backed and keyed by the hash of the
// file contents, suffixed with the scaled size and a normal-map marker.
func LoadFile(path string, opts LoadOptions) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open texture %q: %w", path, err)
	}
	return Decode(path, data, opts)
}

// Decode turns encoded file bytes into a Buffer.
func Decode(name string, data []byte, opts LoadOptions) (*Buffer, error) {
	var buf *Buffer
	key := Hash(data)
	if IsDDS(data) {
		b, err := DecodeDDS(name, data)
		if err != nil {
			return nil, err
		}
		buf = b
	} else {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode texture %q: %w", name, err)
		}
		scaled := scaleImage(img, opts.Quality)
		buf = FromImage(name, scaled)
		// downscaled copies and normal maps are cached apart from the
		// full-size color image
		if scaled != img {
			key = fmt.Sprintf("%s-%dx%d", key, buf.Width, buf.Height)
		}
		if opts.Normal {
			key += "-n"
		}
	}

	buf.Flags |= FlagDisk
	if opts.Normal {
		buf.Flags |= FlagNormal
	}
	if opts.NoCompress {
		buf.Flags |= FlagNoCompress
	}
	buf.Hash = key
	return buf, nil
}

// FromImage packs img into the smallest fitting layout: Luminance for grey
// images, RGB for opaque ones and RGBA otherwise.
func FromImage(name string, img image.Image) *Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch src := img.(type) {
	case *image.Gray:
		pix := make([]byte, w*h)
		for y := 0; y < h; y++ {
			copy(pix[y*w:(y+1)*w], src.Pix[y*src.Stride:])
		}
		b := NewBuffer(name, pix, w, h, FormatLuminance)
		b.Flags |= FlagGrey
		return b
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)

	if !nrgba.Opaque() {
		return NewBuffer(name, nrgba.Pix, w, h, FormatRGBA)
	}
	pix := make([]byte, w*h*3)
	for i, j := 0, 0; i < len(nrgba.Pix); i, j = i+4, j+3 {
		pix[j] = nrgba.Pix[i]
		pix[j+1] = nrgba.Pix[i+1]
		pix[j+2] = nrgba.Pix[i+2]
	}
	return NewBuffer(name, pix, w, h, FormatRGB)
}

// scaleImage shrinks img by quality; values outside (0, 1) leave it untouched.
func scaleImage(img image.Image, quality float32) image.Image {
	if quality <= 0 || quality >= 1 {
		return img
	}
	bounds := img.Bounds()
	w := max(1, int(float32(bounds.Dx())*quality))
	h := max(1, int(float32(bounds.Dy())*quality))
	if w == bounds.Dx() && h == bounds.Dy() {
		return img
	}

	g := gift.New(gift.Resize(w, h, gift.LinearResampling))
	if _, grey := img.(*image.Gray); grey {
		dst := image.NewGray(g.Bounds(bounds))
		g.Draw(dst, img)
		return dst
	}
	dst := image.NewNRGBA(g.Bounds(bounds))
	g.Draw(dst, img)
	return dst
}
