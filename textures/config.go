package textures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"texcache/cache"
)

// Config controls compression, caching and upload of textures.
type Config struct {
	// Compress enables compressed internal formats.
	Compress bool `json:"compress"`
	// Cache stores compressed results on disk. It has no effect without Compress.
	Cache bool `json:"cache"`
	// CacheCompression is the lossless transform for cache payloads:
	// "zlib", "zstd" or "none".
	CacheCompression string `json:"cache_compression"`
	// Optimize canonicalizes DXT blocks before they are cached.
	Optimize bool `json:"optimize"`
	// SoftwareEncoder produces DXT1/DXT5 data in process instead of
	// letting the driver compress raw uploads.
	SoftwareEncoder bool `json:"software_encoder"`
	Mipmaps         bool `json:"mipmaps"`
	Bilinear        bool `json:"bilinear"`
	// Trilinear blends between mip levels; it needs Bilinear.
	Trilinear bool `json:"trilinear"`
	// Anisotropy is the anisotropic filtering ratio, 0 (off) to 16.
	Anisotropy int `json:"anisotropy"`
	// Quality scales decoded images before upload, in (0, 1].
	Quality float32 `json:"quality"`
	// DataDir is the user data root; the cache lives in DataDir/cache.
	DataDir string `json:"data_dir"`
}

func DefaultConfig() Config {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return Config{
		Compress:         true,
		Cache:            true,
		CacheCompression: "zlib",
		Optimize:         true,
		SoftwareEncoder:  true,
		Mipmaps:          true,
		Bilinear:         true,
		Trilinear:        true,
		Anisotropy:       4,
		Quality:          1,
		DataDir:          filepath.Join(dir, "texcache"),
	}
}

// LoadConfig reads a JSON file over the defaults. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the loader cannot honor.
func (c Config) Validate() error {
	if c.Quality <= 0 || c.Quality > 1 {
		return fmt.Errorf("quality %v out of range (0, 1]", c.Quality)
	}
	if c.Anisotropy < 0 || c.Anisotropy > 16 {
		return fmt.Errorf("anisotropy %d out of range [0, 16]", c.Anisotropy)
	}
	if c.Cache && c.DataDir == "" {
		return fmt.Errorf("cache enabled without a data directory")
	}
	if _, err := cache.NewCompressor(c.CacheCompression); err != nil {
		return err
	}
	return nil
}

// Sampling returns the filtering textures are finished with.
func (c Config) Sampling() Sampling {
	return Sampling{
		Mipmaps:    c.Mipmaps,
		Bilinear:   c.Bilinear,
		Trilinear:  c.Trilinear,
		Anisotropy: c.Anisotropy,
	}
}

// Store builds the cache store described by c.
func (c Config) Store() (*cache.Store, error) {
	comp, err := cache.NewCompressor(c.CacheCompression)
	if err != nil {
		return nil, err
	}
	s := cache.NewStore(c.DataDir)
	s.Compressor = comp
	s.Optimize = c.Optimize
	return s, nil
}
