package textures

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"texcache/cache"
	"texcache/dxt"
	"texcache/format"
	"texcache/texture"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	return cfg
}

func newLoader(t *testing.T, cfg Config, backend Backend) *Loader {
	t.Helper()
	l, err := NewLoader(cfg, backend)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

// gradient returns a disk-backed 8x8 RGB buffer keyed by its content.
func gradient() *texture.Buffer {
	pix := make([]byte, 8*8*3)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			i := (y*8 + x) * 3
			pix[i], pix[i+1], pix[i+2] = byte(x*32), byte(y*32), 128
		}
	}
	buf := texture.NewBuffer("gradient.png", pix, 8, 8, texture.FormatRGB)
	buf.Flags = texture.FlagDisk
	buf.Hash = texture.Hash(pix)
	return buf
}

func expectStates(t *testing.T, res *Loaded, expected ...State) {
	t.Helper()
	if !reflect.DeepEqual(res.States, expected) {
		t.Errorf("States: expected %v, got %v", expected, res.States)
	}
}

func TestSoftwareEncodeThenCacheHit(t *testing.T) {
	cfg := testConfig(t)
	backend := NewMemoryBackend(format.CapS3TC)
	l := newLoader(t, cfg, backend)

	buf := gradient()
	res, err := l.Load(buf)
	if err != nil {
		t.Fatal(err)
	}
	expectStates(t, res, Decoded, CacheChecked, Negotiated, Encoded, Uploaded, CacheWritten, Ready)
	if res.Format != format.RGBA_S3TC_DXT1 {
		t.Errorf("Format: expected DXT1, got %v", res.Format)
	}

	encoded, err := dxt.Encode(buf.Data, 8, 8, buf.Pitch, 3, dxt.OpaqueColor)
	if err != nil {
		t.Fatal(err)
	}
	canonical := append([]byte(nil), encoded...)
	if _, err := dxt.Canonicalize(canonical, 8, 8, dxt.OpaqueColor); err != nil {
		t.Fatal(err)
	}
	first := backend.Textures[0]
	if first.RawUploads != 0 || !bytes.Equal(first.Levels[0].Data, canonical) {
		t.Error("Load: expected the optimized encoder output to be uploaded")
	}
	if !first.Finished || !first.Mipmapped {
		t.Error("Load: expected a finished, mipmapped texture")
	}
	if expected := cfg.Sampling(); first.Sampling != expected {
		t.Errorf("Finish: expected %+v, got %+v", expected, first.Sampling)
	}

	res, err = l.Load(gradient())
	if err != nil {
		t.Fatal(err)
	}
	expectStates(t, res, Decoded, CacheChecked, CacheHit, Uploaded, Ready)
	if !res.CacheHit() || res.Format != format.RGBA_S3TC_DXT1 || res.Width != 8 || res.Height != 8 {
		t.Errorf("Load: unexpected cache hit result %+v", res)
	}

	if got := backend.Textures[1].Levels[0].Data; !bytes.Equal(got, canonical) {
		t.Errorf("cache hit: expected % X, got % X", canonical, got)
	}
}

// solidRed returns a disk-backed 4x4 red RGB buffer. Its DXT1 block is
// degenerate, so optimizing the cache always rewrites it.
func solidRed() *texture.Buffer {
	pix := bytes.Repeat([]byte{255, 0, 0}, 16)
	buf := texture.NewBuffer("red.png", pix, 4, 4, texture.FormatRGB)
	buf.Flags = texture.FlagDisk
	buf.Hash = texture.Hash(pix)
	return buf
}

func TestUploadMatchesOptimizedCache(t *testing.T) {
	expected := []byte{0x00, 0xF8, 0, 0, 0, 0, 0, 0}
	for _, software := range []bool{true, false} {
		cfg := testConfig(t)
		cfg.SoftwareEncoder = software
		backend := NewMemoryBackend(format.CapS3TC)
		l := newLoader(t, cfg, backend)

		buf := solidRed()
		if _, err := l.Load(buf); err != nil {
			t.Fatal(err)
		}
		if got := backend.Textures[0].Levels[0].Data; !bytes.Equal(got, expected) {
			t.Errorf("software=%v: expected upload % X, got % X", software, expected, got)
		}
		e, hit, err := l.Store.Read(buf.Hash, backend)
		if err != nil || !hit {
			t.Fatalf("software=%v: Read %v %v", software, hit, err)
		}
		if !bytes.Equal(e.Payload, expected) {
			t.Errorf("software=%v: expected cached % X, got % X", software, expected, e.Payload)
		}
	}
}

// rejectingBackend hands out textures whose first reject compressed
// uploads fail, like a driver refusing data it advertised support for.
type rejectingBackend struct {
	*MemoryBackend
	reject int
}

func (b *rejectingBackend) NewTexture() (Texture, error) {
	tex, err := b.MemoryBackend.NewTexture()
	if err != nil {
		return nil, err
	}
	return &rejectingTexture{Texture: tex, backend: b}, nil
}

type rejectingTexture struct {
	Texture
	backend *rejectingBackend
}

func (t *rejectingTexture) UploadCompressed(id format.ID, width, height, level int, data []byte) error {
	if t.backend.reject > 0 {
		t.backend.reject--
		return errors.New("driver rejected upload")
	}
	return t.Texture.UploadCompressed(id, width, height, level, data)
}

func TestRejectedCacheEntryIsReplaced(t *testing.T) {
	cfg := testConfig(t)
	if _, err := newLoader(t, cfg, NewMemoryBackend(format.CapS3TC)).Load(gradient()); err != nil {
		t.Fatal(err)
	}

	backend := &rejectingBackend{MemoryBackend: NewMemoryBackend(format.CapS3TC), reject: 1}
	l := newLoader(t, cfg, backend)
	var logs bytes.Buffer
	l.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	res, err := l.Load(gradient())
	if err != nil {
		t.Fatalf("Load: expected recovery from a rejected entry, got %v", err)
	}
	expectStates(t, res, Decoded, CacheChecked, Negotiated, Encoded, Uploaded, CacheWritten, Ready)
	if res.CacheHit() {
		t.Error("CacheHit: expected false after the entry was rejected")
	}
	if !strings.Contains(logs.String(), "discarding texture cache entry") {
		t.Errorf("log: expected discard warning, got %q", logs.String())
	}

	res, err = l.Load(gradient())
	if err != nil {
		t.Fatal(err)
	}
	expectStates(t, res, Decoded, CacheChecked, CacheHit, Uploaded, Ready)
}

func TestUnusableCacheEntryIsReplaced(t *testing.T) {
	cfg := testConfig(t)
	l := newLoader(t, cfg, NewMemoryBackend(format.CapS3TC))
	buf := gradient()

	// version-valid but uncompressed
	hdr := cache.NewHeader(8, 8, format.RGBA, texture.FormatRGB)
	var head [cache.HeaderSize]byte
	hdr.Encode(head[:])
	if err := os.MkdirAll(l.Store.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(l.Store.Path(buf.Hash), append(head[:], make([]byte, 8*8*4)...), 0o644); err != nil {
		t.Fatal(err)
	}

	for i, expected := range [][]State{
		{Decoded, CacheChecked, Negotiated, Encoded, Uploaded, CacheWritten, Ready},
		{Decoded, CacheChecked, CacheHit, Uploaded, Ready},
	} {
		res, err := l.Load(gradient())
		if err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
		expectStates(t, res, expected...)
	}
}

func TestHardwareCompressionReadback(t *testing.T) {
	cfg := testConfig(t)
	cfg.SoftwareEncoder = false
	cfg.Optimize = false
	backend := NewMemoryBackend(format.CapS3TC)
	l := newLoader(t, cfg, backend)

	buf := gradient()
	res, err := l.Load(buf)
	if err != nil {
		t.Fatal(err)
	}
	expectStates(t, res, Decoded, CacheChecked, Negotiated, Encoded, Uploaded, CacheWritten, Ready)
	if backend.Textures[0].RawUploads != 1 {
		t.Errorf("RawUploads: expected 1, got %d", backend.Textures[0].RawUploads)
	}

	e, hit, err := l.Store.Read(buf.Hash, backend)
	if err != nil || !hit {
		t.Fatalf("Read: %v %v", hit, err)
	}
	if !bytes.Equal(e.Payload, backend.Textures[0].Levels[0].Data) {
		t.Error("cache: expected the driver readback to be stored")
	}
	if e.Header.PixelFormat != texture.FormatRGB {
		t.Errorf("PixelFormat: expected RGB, got %v", e.Header.PixelFormat)
	}
}

func TestUncompressedReadbackNotCached(t *testing.T) {
	cfg := testConfig(t)
	backend := NewMemoryBackend(format.CapS3TC, format.CapBPTC)
	l := newLoader(t, cfg, backend)

	buf := gradient()
	res, err := l.Load(buf)
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != format.RGBA_BPTC_UNORM {
		t.Errorf("Format: expected BPTC, got %v", res.Format)
	}
	expectStates(t, res, Decoded, CacheChecked, Negotiated, Encoded, Uploaded, Ready)
	if _, err := os.Stat(l.Store.Path(buf.Hash)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cache: expected no entry, got %v", err)
	}
}

func TestCacheEntryKeptWhenCapabilityMissing(t *testing.T) {
	cfg := testConfig(t)
	l := newLoader(t, cfg, NewMemoryBackend(format.CapS3TC))
	if _, err := l.Load(gradient()); err != nil {
		t.Fatal(err)
	}

	backend := NewMemoryBackend()
	l = newLoader(t, cfg, backend)
	buf := gradient()
	res, err := l.Load(buf)
	if err != nil {
		t.Fatal(err)
	}
	expectStates(t, res, Decoded, CacheChecked, Negotiated, Encoded, Uploaded, Ready)
	if res.Format != format.RGBA {
		t.Errorf("Format: expected RGBA, got %v", res.Format)
	}
	if got := backend.Textures[0].Levels[0].Data; !bytes.Equal(got, buf.Data) {
		t.Error("raw upload: pixels differ")
	}
	if _, err := os.Stat(l.Store.Path(buf.Hash)); err != nil {
		t.Errorf("cache: expected entry kept, got %v", err)
	}
}

func compressedSource() *texture.Buffer {
	// 8x8 DXT1 with 4x4 and 2x2 mips
	data := make([]byte, 32+8+8)
	for i := range data {
		data[i] = byte(i)
	}
	return &texture.Buffer{
		Name: "rock.dds", Data: data, Width: 8, Height: 8,
		Format: texture.FormatDXT1, Flags: texture.FlagDisk | texture.FlagCompressed,
		Mips: 3, Hash: "rock",
	}
}

func TestCompressedSourceUploadsMips(t *testing.T) {
	cfg := testConfig(t)
	backend := NewMemoryBackend(format.CapS3TC)
	l := newLoader(t, cfg, backend)

	res, err := l.Load(compressedSource())
	if err != nil {
		t.Fatal(err)
	}
	expectStates(t, res, Decoded, Negotiated, Uploaded, Ready)
	tex := backend.Textures[0]
	if len(tex.Levels) != 3 {
		t.Fatalf("Levels: expected 3, got %d", len(tex.Levels))
	}
	sizes := []int{32, 8, 8}
	dims := []int{8, 4, 2}
	for i, lvl := range tex.Levels {
		if len(lvl.Data) != sizes[i] || lvl.Width != dims[i] || lvl.Height != dims[i] {
			t.Errorf("level %d: expected %dx%d with %d bytes, got %dx%d with %d bytes",
				i, dims[i], dims[i], sizes[i], lvl.Width, lvl.Height, len(lvl.Data))
		}
	}
	if tex.Mipmapped {
		t.Error("Finish: stored mips must not be regenerated")
	}
	if _, err := os.Stat(l.Store.Path("rock")); !errors.Is(err, os.ErrNotExist) {
		t.Error("cache: compressed sources must not be cached")
	}
}

func TestCompressedSourceWithoutCapabilityIsFatal(t *testing.T) {
	backend := NewMemoryBackend(format.CapRGTC)
	l := newLoader(t, testConfig(t), backend)

	_, err := l.Load(compressedSource())
	if !errors.Is(err, ErrFatal) || !errors.Is(err, format.ErrUnsupported) {
		t.Fatalf("Load: expected fatal unsupported error, got %v", err)
	}
	if backend.Textures[0].Releases != 1 {
		t.Errorf("Release: expected 1, got %d", backend.Textures[0].Releases)
	}
}

func TestUncacheableSourcesSkipCache(t *testing.T) {
	cfg := testConfig(t)
	backend := NewMemoryBackend(format.CapS3TC)
	l := newLoader(t, cfg, backend)

	opted := gradient()
	opted.Flags |= texture.FlagNoCompress
	res, err := l.Load(opted)
	if err != nil {
		t.Fatal(err)
	}
	expectStates(t, res, Decoded, Negotiated, Encoded, Uploaded, Ready)
	if res.Format != format.RGBA {
		t.Errorf("Format: expected RGBA, got %v", res.Format)
	}

	generated := gradient()
	generated.Flags = 0
	res, err = l.Load(generated)
	if err != nil {
		t.Fatal(err)
	}
	expectStates(t, res, Decoded, Negotiated, Encoded, Uploaded, Ready)
	if res.Format != format.RGBA_S3TC_DXT1 {
		t.Errorf("Format: expected DXT1, got %v", res.Format)
	}
}

func TestCompressionDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Compress = false
	l := newLoader(t, cfg, NewMemoryBackend(format.CapS3TC))
	if l.Store != nil {
		t.Error("NewLoader: expected no cache without compression")
	}
	res, err := l.Load(gradient())
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != format.RGBA {
		t.Errorf("Format: expected RGBA, got %v", res.Format)
	}
}

func TestCacheWriteFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	// a regular file where the data directory should be
	cfg.DataDir = filepath.Join(cfg.DataDir, "blocked")
	if err := os.WriteFile(cfg.DataDir, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	l := newLoader(t, cfg, NewMemoryBackend(format.CapS3TC))
	var logs bytes.Buffer
	l.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	l.Store.Logger = l.Logger

	res, err := l.Load(gradient())
	if err != nil {
		t.Fatal(err)
	}
	expectStates(t, res, Decoded, CacheChecked, Negotiated, Encoded, Uploaded, Ready)
	if !strings.Contains(logs.String(), "texture cache write failed") {
		t.Errorf("log: expected write failure warning, got %q", logs.String())
	}
}

func TestManager(t *testing.T) {
	cfg := testConfig(t)
	backend := NewMemoryBackend(format.CapS3TC)
	m := NewManager(newLoader(t, cfg, backend))

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.Set(i%4, i/4, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	}
	path := filepath.Join(t.TempDir(), "red.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	a, err := m.LoadTexture(path, texture.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.LoadTexture(path, texture.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if a != b || len(backend.Textures) != 1 {
		t.Errorf("LoadTexture: expected one upload, got %d", len(backend.Textures))
	}

	def := m.GetOrDefault(filepath.Join(t.TempDir(), "missing.png"))
	if def == nil || def.Name != defaultKey || def.Format != format.RGBA {
		t.Errorf("GetOrDefault: expected default texture, got %+v", def)
	}
	if m.GetDefaultTexture() != def {
		t.Error("GetDefaultTexture: expected memoized default")
	}
	if m.Len() != 2 {
		t.Errorf("Len: expected 2, got %d", m.Len())
	}

	buf := gradient()
	if _, err := m.LoadBuffer(buf); err != nil {
		t.Fatal(err)
	}
	if buf.Data != nil {
		t.Error("LoadBuffer: expected pixel data dropped after upload")
	}

	m.DestroyAll()
	if m.Len() != 0 {
		t.Errorf("DestroyAll: expected empty manager, got %d", m.Len())
	}
	for i, tex := range backend.Textures {
		if tex.Releases != 1 {
			t.Errorf("texture %d: expected 1 release, got %d", i, tex.Releases)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textures.json")
	if err := os.WriteFile(path, []byte(`{"cache_compression": "zstd", "quality": 0.5}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheCompression != "zstd" || cfg.Quality != 0.5 {
		t.Errorf("LoadConfig: expected zstd / 0.5, got %s / %v", cfg.CacheCompression, cfg.Quality)
	}
	if !cfg.Compress || !cfg.Cache || !cfg.Optimize || !cfg.Trilinear || cfg.Anisotropy != 4 {
		t.Error("LoadConfig: expected defaults for missing fields")
	}

	bad := DefaultConfig()
	bad.Quality = 1.5
	if bad.Validate() == nil {
		t.Error("Validate: expected error for quality 1.5")
	}
	bad = DefaultConfig()
	bad.Anisotropy = 32
	if bad.Validate() == nil {
		t.Error("Validate: expected error for anisotropy 32")
	}
	bad = DefaultConfig()
	bad.CacheCompression = "lz4"
	if bad.Validate() == nil {
		t.Error("Validate: expected error for unknown compressor")
	}
}
