// Package cache persists compressed textures on disk, keyed by the content
// hash of their source, so block compression runs once per source file.
//
// A cache file is a fixed Header followed by the payload. Entries are
// never overwritten; stale versions are deleted when read.
package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"texcache/core"
	"texcache/dxt"
	"texcache/format"
)

// Entry is a cache hit: the header as stored and the decoded payload.
type Entry struct {
	Header  Header
	Payload []byte
}

// Store reads and writes cache entries below Dir.
type Store struct {
	// Dir holds one file per key.
	Dir string
	// Compressor is applied to payloads on write; nil stores them as is.
	// Reads decode whatever codec the header names.
	Compressor Compressor
	// Optimize canonicalizes DXT payloads before they are written.
	Optimize bool
	// Logger defaults to core.Logger().
	Logger *slog.Logger
}

// NewStore returns a store for the cache directory under dataDir.
func NewStore(dataDir string) *Store {
	return &Store{Dir: filepath.Join(dataDir, "cache")}
}

func (s *Store) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return core.Logger()
}

// Path returns the file holding key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.Dir, key)
}

func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".tmp-") {
		return fmt.Errorf("cache: invalid key %q", key)
	}
	return nil
}

// Read looks key up. A missing file, an entry written by another cache
// version, a corrupt entry and an entry whose format caps cannot upload
// are all misses; stale and corrupt entries are deleted, the unsupported
// one is kept. Only
// unexpected I/O failures are returned as errors.
func (s *Store) Read(key string, caps format.Capabilities) (Entry, bool, error) {
	if err := checkKey(key); err != nil {
		return Entry{}, false, err
	}
	path := s.Path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read cache %s: %w", key, err)
	}

	hdr, err := DecodeHeader(data)
	if err == nil {
		err = hdr.Validate()
	}
	if err != nil {
		s.log().Warn("discarding cache entry", "key", key, "err", err)
		s.discard(path)
		return Entry{}, false, nil
	}
	if !format.Supported(hdr.InternalFormat, caps) {
		s.log().Warn("cache entry format unavailable",
			"key", key, "format", hdr.InternalFormat.String(), "capability", string(hdr.InternalFormat.Capability()))
		return Entry{}, false, nil
	}

	payload := data[HeaderSize:]
	if hdr.Compressed() {
		c, err := compressorFor(hdr.Codec)
		if err == nil {
			payload, err = c.Decompress(payload)
		}
		if err != nil {
			s.log().Warn("discarding cache entry", "key", key, "err", fmt.Errorf("%w: %v", ErrCorruptPayload, err))
			s.discard(path)
			return Entry{}, false, nil
		}
	}
	if need := PayloadSize(hdr); len(payload) < need {
		s.log().Warn("discarding cache entry", "key", key,
			"err", fmt.Errorf("%w: %d payload bytes, need %d", ErrCorruptPayload, len(payload), need))
		s.discard(path)
		return Entry{}, false, nil
	}

	s.log().Info("texture cache hit",
		"key", key, "format", hdr.InternalFormat.String(),
		"width", hdr.Width, "height", hdr.Height, "size", SizeMetric(int64(len(payload))))
	return Entry{Header: hdr, Payload: payload}, true, nil
}

func (s *Store) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log().Warn("could not remove cache entry", "path", path, "err", err)
	}
}

// Write stores payload under key. hdr's Version and Codec are filled in by
// the store. sourceSize is the uncompressed size, used for logging only.
//
// DXT payloads are canonicalized first when Optimize is set; the caller's
// slice is left untouched. Write reports false without error when key
// already has an entry.
func (s *Store) Write(key string, hdr Header, payload []byte, sourceSize int) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	if err := hdr.Validate(); err != nil {
		return false, fmt.Errorf("write cache %s: %w", key, err)
	}
	path := s.Path(key)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	hdr.Version = Version
	hdr.Codec = CodecNone

	if kind, ok := hdr.InternalFormat.BlockKind(); ok && s.Optimize {
		payload = append([]byte(nil), payload...)
		n, err := dxt.Canonicalize(payload, int(hdr.Width), int(hdr.Height), kind)
		if err != nil {
			return false, fmt.Errorf("optimize %s: %w", key, err)
		}
		blocks := len(payload) / kind.BlockSize()
		s.log().Debug("optimized texture blocks",
			"key", key, "blocks", n, "percent", fmt.Sprintf("%.2f", 100*float64(n)/float64(max(blocks, 1))))
	}

	if s.Compressor != nil {
		packed, err := s.Compressor.Compress(payload)
		if err != nil {
			return false, fmt.Errorf("compress %s: %w", key, err)
		}
		payload = packed
		hdr.Codec = s.Compressor.Codec()
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return false, fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".tmp-*")
	if err != nil {
		return false, fmt.Errorf("write cache %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	var head [HeaderSize]byte
	hdr.Encode(head[:])
	_, err = tmp.Write(head[:])
	if err == nil {
		_, err = tmp.Write(payload)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false, fmt.Errorf("write cache %s: %w", key, err)
	}

	// linking fails if another writer got there first
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("write cache %s: %w", key, err)
	}

	s.log().Info("wrote texture cache entry",
		"key", key, "format", hdr.InternalFormat.String(), "codec", hdr.Codec.String(),
		"source", SizeMetric(int64(sourceSize)), "stored", SizeMetric(int64(HeaderSize+len(payload))))
	return true, nil
}

// Remove deletes the entry for key. Removing a missing entry is not an error.
func (s *Store) Remove(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache %s: %w", key, err)
	}
	return nil
}

// Info describes one file in the cache directory.
type Info struct {
	Key    string
	Size   int64
	Header Header
	// Err is set when the header cannot be used by this version.
	Err error
}

// Entries lists the cache directory. A missing directory is empty.
func (s *Store) Entries() ([]Info, error) {
	dirents, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}

	var infos []Info
	for _, d := range dirents {
		if !d.Type().IsRegular() || checkKey(d.Name()) != nil {
			continue
		}
		info := Info{Key: d.Name()}
		f, err := os.Open(s.Path(d.Name()))
		if err != nil {
			info.Err = err
			infos = append(infos, info)
			continue
		}
		var head [HeaderSize]byte
		n, err := io.ReadFull(f, head[:])
		if st, serr := f.Stat(); serr == nil {
			info.Size = st.Size()
		}
		f.Close()
		switch {
		case err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF):
			info.Err = fmt.Errorf("read header: %w", err)
		default:
			info.Header, info.Err = DecodeHeader(head[:n])
			if info.Err == nil {
				info.Err = info.Header.Validate()
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Purge removes entries this version cannot read, or every entry when all
// is set, and returns how many files were removed.
func (s *Store) Purge(all bool) (int, error) {
	infos, err := s.Entries()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, info := range infos {
		if !all && info.Err == nil {
			continue
		}
		if err := os.Remove(s.Path(info.Key)); err != nil {
			return removed, fmt.Errorf("purge %s: %w", info.Key, err)
		}
		removed++
	}
	s.log().Info("purged texture cache", "dir", s.Dir, "removed", removed)
	return removed, nil
}

// SizeMetric formats a byte count for logs.
func SizeMetric(n int64) string {
	const unit = 1024
	switch {
	case n < unit:
		return fmt.Sprintf("%d B", n)
	case n < unit*unit:
		return fmt.Sprintf("%.2f kB", float64(n)/unit)
	case n < unit*unit*unit:
		return fmt.Sprintf("%.2f MB", float64(n)/(unit*unit))
	}
	return fmt.Sprintf("%.2f GB", float64(n)/(unit*unit*unit))
}
