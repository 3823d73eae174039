package textures

import (
	"fmt"

	"texcache/dxt"
	"texcache/format"
)

// Backend is the graphics API textures are uploaded to.
type Backend interface {
	format.Capabilities
	NewTexture() (Texture, error)
}

// Texture is one backend texture object. It is owned by whoever created it
// and must be released exactly once.
type Texture interface {
	// UploadRaw uploads level 0 from uncompressed pixels whose rows are
	// pitch bytes apart. The backend may compress them when q.Target is a
	// compressed format.
	UploadRaw(q format.Query, width, height, pitch int, pix []byte) error
	// UploadCompressed uploads one mip level of block data.
	UploadCompressed(id format.ID, width, height, level int, data []byte) error
	// Compressed reads level 0 back when the backend stored it compressed.
	// data is nil when it did not.
	Compressed() (width, height int, data []byte, err error)
	// Finish applies s once all levels are uploaded and builds the mip
	// chain when s.Mipmaps is set and only level 0 exists.
	Finish(s Sampling) error
	Release()
}

// Sampling is the filtering a finished texture is sampled with.
type Sampling struct {
	Mipmaps   bool
	Bilinear  bool
	Trilinear bool
	// Anisotropy is the maximum anisotropic filtering ratio; 0 disables it.
	Anisotropy int
}

// MemoryBackend keeps textures in memory. It compresses raw uploads to
// DXT1/DXT5 the way a driver would and stores raw uploads for other
// compressed targets uncompressed.
type MemoryBackend struct {
	Caps format.CapabilitySet
	// Textures lists every texture handed out, released or not.
	Textures []*MemoryTexture
}

func NewMemoryBackend(caps ...format.Capability) *MemoryBackend {
	return &MemoryBackend{Caps: format.NewCapabilitySet(caps...)}
}

func (b *MemoryBackend) Has(c format.Capability) bool { return b.Caps.Has(c) }

func (b *MemoryBackend) NewTexture() (Texture, error) {
	t := &MemoryTexture{caps: b.Caps}
	b.Textures = append(b.Textures, t)
	return t, nil
}

// Level is one uploaded mip level.
type Level struct {
	Format format.ID
	Width  int
	Height int
	Data   []byte
}

// MemoryTexture records what was uploaded to it.
type MemoryTexture struct {
	Levels []Level
	// RawUploads counts UploadRaw calls.
	RawUploads int
	Mipmapped  bool
	Finished   bool
	Sampling   Sampling
	Releases   int

	caps format.CapabilitySet
}

func (t *MemoryTexture) UploadRaw(q format.Query, width, height, pitch int, pix []byte) error {
	if !format.Supported(q.Target, t.caps) {
		return fmt.Errorf("memory backend: %v unsupported", q.Target)
	}
	channels := q.Layout.Channels()
	if channels == 0 {
		return fmt.Errorf("memory backend: unknown layout 0x%04X", uint32(q.Layout))
	}

	t.RawUploads++
	level := Level{Format: q.Target, Width: width, Height: height}
	if kind, ok := q.Target.BlockKind(); ok {
		data, err := dxt.Encode(pix, width, height, pitch, channels, kind)
		if err != nil {
			return err
		}
		level.Data = data
	} else {
		// like a driver without an encoder for the target: keep it raw
		if q.Target.Compressed() {
			level.Format = format.RGBA
		}
		level.Data = make([]byte, 0, width*height*channels)
		for y := 0; y < height; y++ {
			level.Data = append(level.Data, pix[y*pitch:y*pitch+width*channels]...)
		}
	}
	t.Levels = append(t.Levels[:0], level)
	return nil
}

func (t *MemoryTexture) UploadCompressed(id format.ID, width, height, level int, data []byte) error {
	if !id.Compressed() || !format.Supported(id, t.caps) {
		return fmt.Errorf("memory backend: %v unsupported", id)
	}
	if level > len(t.Levels) {
		return fmt.Errorf("memory backend: level %d uploaded after %d levels", level, len(t.Levels))
	}
	l := Level{Format: id, Width: width, Height: height, Data: append([]byte(nil), data...)}
	if level < len(t.Levels) {
		t.Levels[level] = l
		return nil
	}
	t.Levels = append(t.Levels, l)
	return nil
}

func (t *MemoryTexture) Compressed() (int, int, []byte, error) {
	if len(t.Levels) == 0 {
		return 0, 0, nil, fmt.Errorf("memory backend: nothing uploaded")
	}
	l := t.Levels[0]
	if !l.Format.Compressed() {
		return 0, 0, nil, nil
	}
	return l.Width, l.Height, l.Data, nil
}

func (t *MemoryTexture) Finish(s Sampling) error {
	t.Finished = true
	t.Sampling = s
	t.Mipmapped = s.Mipmaps && len(t.Levels) == 1
	return nil
}

func (t *MemoryTexture) Release() {
	t.Releases++
}
