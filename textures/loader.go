// Package textures turns pixel buffers into backend textures, going through
// the on-disk compressed texture cache when it can.
package textures

import (
	"errors"
	"fmt"
	"log/slog"

	"texcache/cache"
	"texcache/core"
	"texcache/dxt"
	"texcache/format"
	"texcache/texture"
)

// ErrFatal marks failures no fallback can recover from: a block-compressed
// source the backend cannot use, or a software encoder failure.
var ErrFatal = errors.New("textures: fatal")

// State is a step of a load.
type State int

const (
	Decoded State = iota
	CacheChecked
	CacheHit
	Negotiated
	Encoded
	Uploaded
	CacheWritten
	Ready
)

var stateNames = [...]string{
	Decoded:      "decoded",
	CacheChecked: "cache-checked",
	CacheHit:     "cache-hit",
	Negotiated:   "negotiated",
	Encoded:      "encoded",
	Uploaded:     "uploaded",
	CacheWritten: "cache-written",
	Ready:        "ready",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Loaded is a texture that reached Ready.
type Loaded struct {
	Name    string
	Texture Texture
	Format  format.ID
	Width   int
	Height  int
	// States lists the steps the load went through, in order.
	States []State
}

// CacheHit reports whether the texture came from the cache.
func (l *Loaded) CacheHit() bool {
	for _, s := range l.States {
		if s == CacheHit {
			return true
		}
	}
	return false
}

// Loader uploads buffers to a backend. It is not safe for concurrent use;
// graphics backends are bound to one thread anyway.
type Loader struct {
	Config  Config
	Backend Backend
	// Store is nil when caching is disabled.
	Store  *cache.Store
	Logger *slog.Logger
}

// NewLoader validates cfg and opens the cache it describes.
func NewLoader(cfg Config, backend Backend) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid texture config: %w", err)
	}
	l := &Loader{Config: cfg, Backend: backend}
	if cfg.Compress && cfg.Cache {
		store, err := cfg.Store()
		if err != nil {
			return nil, err
		}
		l.Store = store
	}
	return l, nil
}

func (l *Loader) log() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return core.Logger()
}

func (l *Loader) cacheable(buf *texture.Buffer) bool {
	return l.Store != nil && buf.Hash != "" &&
		buf.Flags.Has(texture.FlagDisk) && !buf.Flags.Has(texture.FlagNoCompress)
}

// Load uploads buf and returns the ready texture. buf may be converted in
// place to the layout the chosen format needs.
//
// Cache failures never fail a load; they are logged and the texture is
// produced without the cache. Errors wrapping ErrFatal mean the buffer
// cannot be uploaded on this backend at all.
func (l *Loader) Load(buf *texture.Buffer) (*Loaded, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	tex, err := l.Backend.NewTexture()
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", buf.Name, err)
	}

	var res *Loaded
	if buf.Flags.Has(texture.FlagCompressed) {
		res, err = l.loadCompressed(tex, buf)
	} else {
		res, err = l.loadPixels(tex, buf)
	}
	if err != nil {
		tex.Release()
		return nil, err
	}

	if err := tex.Finish(l.Config.Sampling()); err != nil {
		tex.Release()
		return nil, fmt.Errorf("finish texture %q: %w", buf.Name, err)
	}
	res.States = append(res.States, Ready)
	l.log().Debug("texture ready", "name", buf.Name, "format", res.Format.String(), "states", fmt.Sprint(res.States))
	return res, nil
}

// loadCompressed uploads a block-compressed source and its mip chain as is.
// Such sources are never cached.
func (l *Loader) loadCompressed(tex Texture, buf *texture.Buffer) (*Loaded, error) {
	q, err := format.Negotiate(buf, l.Backend, l.Config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	res := &Loaded{Name: buf.Name, Texture: tex, Format: q.Target, Width: buf.Width, Height: buf.Height,
		States: []State{Decoded, Negotiated}}

	bs := q.Target.BlockSize()
	w, h, off := buf.Width, buf.Height, 0
	for level := 0; level < max(buf.Mips, 1); level++ {
		size := ((w + 3) / 4) * ((h + 3) / 4) * bs
		if off+size > len(buf.Data) {
			break
		}
		if err := tex.UploadCompressed(q.Target, w, h, level, buf.Data[off:off+size]); err != nil {
			return nil, fmt.Errorf("upload %q level %d: %w", buf.Name, level, err)
		}
		off += size
		w, h = max(w/2, 1), max(h/2, 1)
	}
	res.States = append(res.States, Uploaded)
	return res, nil
}

func (l *Loader) loadPixels(tex Texture, buf *texture.Buffer) (*Loaded, error) {
	res := &Loaded{Name: buf.Name, Texture: tex, Width: buf.Width, Height: buf.Height, States: []State{Decoded}}

	cacheable := l.cacheable(buf)
	if cacheable {
		res.States = append(res.States, CacheChecked)
		entry, hit, err := l.Store.Read(buf.Hash, l.Backend)
		if err != nil {
			l.log().Warn("texture cache read failed", "name", buf.Name, "key", buf.Hash, "err", err)
		}
		if hit {
			hdr := entry.Header
			w, h := int(hdr.Width), int(hdr.Height)
			err = tex.UploadCompressed(hdr.InternalFormat, w, h, 0, entry.Payload)
			if err == nil {
				res.Format = hdr.InternalFormat
				res.Width, res.Height = w, h
				res.States = append(res.States, CacheHit, Uploaded)
				return res, nil
			}
			// the backend cannot use the entry: drop it and encode again
			l.log().Warn("discarding texture cache entry the backend rejected",
				"name", buf.Name, "key", buf.Hash, "format", hdr.InternalFormat.String(), "err", err)
			if err := l.Store.Remove(buf.Hash); err != nil {
				l.log().Warn("texture cache remove failed", "name", buf.Name, "key", buf.Hash, "err", err)
			}
		}
	}

	q, err := format.Negotiate(buf, l.Backend, l.Config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	res.Format = q.Target
	res.States = append(res.States, Negotiated)
	l.log().Debug("negotiated texture format", "name", buf.Name, "format", q.Target.String(), "source", buf.Format.String())

	var (
		payload []byte
		pw, ph  = buf.Width, buf.Height
	)
	if kind, ok := q.Target.BlockKind(); ok && l.Config.SoftwareEncoder {
		data, err := dxt.Encode(buf.Data, buf.Width, buf.Height, buf.Pitch, buf.BPP(), kind)
		if err != nil {
			return nil, fmt.Errorf("%w: encode %q: %w", ErrFatal, buf.Name, err)
		}
		res.States = append(res.States, Encoded)
		if cacheable {
			data, _ = l.canonical(q.Target, buf.Width, buf.Height, data)
		}
		if err := tex.UploadCompressed(q.Target, buf.Width, buf.Height, 0, data); err != nil {
			return nil, fmt.Errorf("upload %q: %w", buf.Name, err)
		}
		payload = data
	} else {
		if err := tex.UploadRaw(q, buf.Width, buf.Height, buf.Pitch, buf.Data); err != nil {
			return nil, fmt.Errorf("upload %q: %w", buf.Name, err)
		}
		res.States = append(res.States, Encoded)
		if cacheable && q.Target.Compressed() {
			pw, ph, payload, err = tex.Compressed()
			if err != nil {
				l.log().Warn("compressed readback failed", "name", buf.Name, "format", q.Target.String(), "err", err)
				payload = nil
			} else if payload == nil {
				l.log().Debug("backend did not compress texture", "name", buf.Name, "format", q.Target.String())
			} else if c, changed := l.canonical(q.Target, pw, ph, payload); changed {
				if err := tex.UploadCompressed(q.Target, pw, ph, 0, c); err != nil {
					l.log().Warn("optimized re-upload failed", "name", buf.Name, "format", q.Target.String(), "err", err)
				}
			}
		}
	}
	res.States = append(res.States, Uploaded)

	if cacheable && q.Target.Compressed() && payload != nil {
		hdr := cache.NewHeader(pw, ph, q.Target, buf.Format)
		written, err := l.Store.Write(buf.Hash, hdr, payload, buf.Size())
		if err != nil {
			l.log().Warn("texture cache write failed", "name", buf.Name, "key", buf.Hash, "format", q.Target.String(), "err", err)
		} else if written {
			res.States = append(res.States, CacheWritten)
		}
	}
	return res, nil
}

// canonical returns a copy of payload with degenerate DXT blocks rewritten
// when the cache optimizes entries, so a freshly encoded texture matches
// what later loads read from the cache. It reports whether any block changed.
func (l *Loader) canonical(id format.ID, width, height int, payload []byte) ([]byte, bool) {
	kind, ok := id.BlockKind()
	if !ok || l.Store == nil || !l.Store.Optimize {
		return payload, false
	}
	out := append([]byte(nil), payload...)
	n, err := dxt.Canonicalize(out, width, height, kind)
	if err != nil {
		l.log().Warn("texture optimization failed", "format", id.String(), "err", err)
		return payload, false
	}
	if n == 0 {
		return payload, false
	}
	return out, true
}
