package textures

import (
	"fmt"
	"sync"

	"texcache/texture"
)

const defaultKey = "__default_white__"

// Manager manages loaded textures, loading each source once.
type Manager struct {
	textures map[string]*Loaded
	mu       sync.RWMutex
	loader   *Loader
}

// NewManager creates a new texture manager
func NewManager(loader *Loader) *Manager {
	return &Manager{
		textures: make(map[string]*Loaded),
		loader:   loader,
	}
}

// LoadTexture loads a texture from file, returning the loaded version if available.
// A zero opts.Quality uses the loader's configured quality.
func (m *Manager) LoadTexture(path string, opts texture.LoadOptions) (*Loaded, error) {
	if tex, ok := m.Get(path); ok {
		return tex, nil
	}

	if opts.Quality == 0 {
		opts.Quality = m.loader.Config.Quality
	}
	buf, err := texture.LoadFile(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	return m.add(path, buf)
}

// LoadBuffer uploads an already decoded buffer, keyed by its name. The
// buffer's pixel data is dropped once it is uploaded.
func (m *Manager) LoadBuffer(buf *texture.Buffer) (*Loaded, error) {
	if tex, ok := m.Get(buf.Name); ok {
		return tex, nil
	}
	return m.add(buf.Name, buf)
}

// LoadGLTF uploads every image a glTF document references. Images that
// fail to upload are skipped and logged.
func (m *Manager) LoadGLTF(path string) ([]*Loaded, error) {
	opts := texture.DefaultLoadOptions()
	opts.Quality = m.loader.Config.Quality
	bufs, err := texture.LoadGLTF(path, opts)
	if err != nil {
		return nil, err
	}
	var loaded []*Loaded
	for _, buf := range bufs {
		tex, err := m.LoadBuffer(buf)
		if err != nil {
			m.loader.log().Warn("failed to load model texture", "model", path, "name", buf.Name, "err", err)
			continue
		}
		loaded = append(loaded, tex)
	}
	return loaded, nil
}

func (m *Manager) add(key string, buf *texture.Buffer) (*Loaded, error) {
	tex, err := m.loader.Load(buf)
	if err != nil {
		return nil, err
	}
	buf.Unload()

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.textures[key]; ok {
		tex.Texture.Release()
		return prev, nil
	}
	m.textures[key] = tex
	return tex, nil
}

// Get returns the texture loaded under key.
func (m *Manager) Get(key string) (*Loaded, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tex, ok := m.textures[key]
	return tex, ok
}

// GetOrDefault returns the texture at path, or the default white texture
func (m *Manager) GetOrDefault(path string) *Loaded {
	if path == "" {
		return m.GetDefaultTexture()
	}
	tex, err := m.LoadTexture(path, texture.LoadOptions{})
	if err != nil {
		m.loader.log().Warn("failed to load texture", "path", path, "err", err)
		return m.GetDefaultTexture()
	}
	return tex
}

// GetDefaultTexture returns a 1x1 white texture
func (m *Manager) GetDefaultTexture() *Loaded {
	if tex, ok := m.Get(defaultKey); ok {
		return tex
	}
	buf := texture.NewBuffer(defaultKey, []byte{255, 255, 255, 255}, 1, 1, texture.FormatRGBA)
	buf.Flags = texture.FlagNoCompress
	tex, err := m.add(defaultKey, buf)
	if err != nil {
		m.loader.log().Error("failed to create default texture", "err", err)
		return nil
	}
	return tex
}

// Len returns the number of loaded textures.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.textures)
}

// DestroyAll releases all loaded textures
func (m *Manager) DestroyAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tex := range m.textures {
		tex.Texture.Release()
	}
	m.textures = make(map[string]*Loaded)
}
