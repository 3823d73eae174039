package opengl

import (
	"fmt"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"texcache/format"
	"texcache/textures"
)

// Anisotropic filtering is an extension in GL 4.1.
const (
	extAnisotropic       format.Capability = "GL_EXT_texture_filter_anisotropic"
	textureMaxAnisotropy                   = 0x84FE
)

// Backend uploads textures through the OpenGL context current on the
// calling thread.
type Backend struct {
	caps format.CapabilitySet
}

var _ textures.Backend = (*Backend)(nil)

// NewBackend loads the GL function pointers and records the compression
// extensions the driver advertises. A context must be current.
func NewBackend() (*Backend, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	return &Backend{caps: Extensions()}, nil
}

// Extensions lists the texture compression and filtering extensions of the
// current context.
func Extensions() format.CapabilitySet {
	known := []format.Capability{format.CapS3TC, format.CapRGTC, format.CapBPTC, extAnisotropic}
	caps := format.NewCapabilitySet()

	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	for i := uint32(0); i < uint32(n); i++ {
		name := format.Capability(gl.GoStr(gl.GetStringi(gl.EXTENSIONS, i)))
		for _, c := range known {
			if name == c {
				caps[c] = true
			}
		}
	}
	return caps
}

func (b *Backend) Has(c format.Capability) bool { return b.caps.Has(c) }

// NewTexture generates a texture object. Call from the thread owning the context.
func (b *Backend) NewTexture() (textures.Texture, error) {
	var id uint32
	gl.GenTextures(1, &id)
	if id == 0 {
		return nil, fmt.Errorf("glGenTextures returned no name")
	}
	return &Texture{id: id, anisotropic: b.caps.Has(extAnisotropic)}, nil
}

// Texture is a GL texture object owned by the caller.
type Texture struct {
	id          uint32
	levels      int
	anisotropic bool
}

func (t *Texture) bind() error {
	if t.id == 0 {
		return fmt.Errorf("texture already released")
	}
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	return nil
}

// UploadRaw uploads level 0. With a compressed q.Target the driver
// compresses the pixels itself.
func (t *Texture) UploadRaw(q format.Query, width, height, pitch int, pix []byte) error {
	if len(pix) == 0 {
		return fmt.Errorf("no pixel data")
	}
	if err := t.bind(); err != nil {
		return err
	}
	defer gl.BindTexture(gl.TEXTURE_2D, 0)

	bpp := q.Layout.Channels()
	if bpp == 0 {
		return fmt.Errorf("unknown pixel layout 0x%04X", uint32(q.Layout))
	}
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(pitch/bpp))
	defer gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	if q.Target.Compressed() {
		gl.Hint(gl.TEXTURE_COMPRESSION_HINT, gl.NICEST)
	}

	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		int32(q.Target),
		int32(width),
		int32(height),
		0,
		uint32(q.Layout),
		uint32(q.DataType),
		unsafe.Pointer(&pix[0]),
	)
	if err := glError("glTexImage2D"); err != nil {
		return fmt.Errorf("upload %v: %w", q, err)
	}
	t.levels = 1
	return nil
}

// UploadCompressed uploads one level of block data.
func (t *Texture) UploadCompressed(id format.ID, width, height, level int, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("no block data")
	}
	if err := t.bind(); err != nil {
		return err
	}
	defer gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.CompressedTexImage2D(
		gl.TEXTURE_2D,
		int32(level),
		uint32(id),
		int32(width),
		int32(height),
		0,
		int32(len(data)),
		unsafe.Pointer(&data[0]),
	)
	if err := glError("glCompressedTexImage2D"); err != nil {
		return fmt.Errorf("upload %v level %d: %w", id, level, err)
	}
	t.levels = max(t.levels, level+1)
	return nil
}

// Compressed reads back level 0 if the driver stored it compressed.
func (t *Texture) Compressed() (int, int, []byte, error) {
	if err := t.bind(); err != nil {
		return 0, 0, nil, err
	}
	defer gl.BindTexture(gl.TEXTURE_2D, 0)

	var compressed, size, width, height int32
	gl.GetTexLevelParameteriv(gl.TEXTURE_2D, 0, gl.TEXTURE_COMPRESSED, &compressed)
	if compressed == gl.FALSE {
		return 0, 0, nil, nil
	}
	gl.GetTexLevelParameteriv(gl.TEXTURE_2D, 0, gl.TEXTURE_COMPRESSED_IMAGE_SIZE, &size)
	gl.GetTexLevelParameteriv(gl.TEXTURE_2D, 0, gl.TEXTURE_WIDTH, &width)
	gl.GetTexLevelParameteriv(gl.TEXTURE_2D, 0, gl.TEXTURE_HEIGHT, &height)
	if size <= 0 {
		return 0, 0, nil, fmt.Errorf("driver reported compressed size %d", size)
	}

	data := make([]byte, size)
	gl.GetCompressedTexImage(gl.TEXTURE_2D, 0, unsafe.Pointer(&data[0]))
	if err := glError("glGetCompressedTexImage"); err != nil {
		return 0, 0, nil, err
	}
	return int(width), int(height), data, nil
}

// Finish sets wrapping and filtering and, for single-level textures,
// generates the mip chain when s.Mipmaps is set.
func (t *Texture) Finish(s textures.Sampling) error {
	if err := t.bind(); err != nil {
		return err
	}
	defer gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)

	mipmapped := true
	switch {
	case t.levels > 1:
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, int32(t.levels-1))
	case s.Mipmaps:
		gl.GenerateMipmap(gl.TEXTURE_2D)
	default:
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, 0)
		mipmapped = false
	}

	minFilter, magFilter := filters(s, mipmapped)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)
	if t.anisotropic && s.Anisotropy > 0 {
		gl.TexParameterf(gl.TEXTURE_2D, textureMaxAnisotropy, float32(s.Anisotropy))
	}
	return glError("finish texture")
}

var minFilters = [8]int32{
	gl.NEAREST, gl.LINEAR, gl.NEAREST_MIPMAP_NEAREST, gl.LINEAR_MIPMAP_NEAREST,
	gl.NEAREST, gl.LINEAR, gl.NEAREST_MIPMAP_LINEAR, gl.LINEAR_MIPMAP_LINEAR,
}

// filters returns the minification and magnification filters for s.
// Trilinear only matters for mipmapped textures.
func filters(s textures.Sampling, mipmapped bool) (minFilter, magFilter int32) {
	index := 0
	if s.Bilinear {
		index |= 1
	}
	if mipmapped {
		index |= 2
	}
	if s.Trilinear {
		index |= 4
	}
	magFilter = gl.NEAREST
	if s.Bilinear {
		magFilter = gl.LINEAR
	}
	return minFilters[index], magFilter
}

// Release frees the GPU texture. Later calls do nothing.
func (t *Texture) Release() {
	if t.id == 0 {
		return
	}
	gl.DeleteTextures(1, &t.id)
	t.id = 0
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%s failed: GL error 0x%04X", op, code)
	}
	return nil
}
