package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"texcache/cache"
	"texcache/format"
	"texcache/internal/opengl"
	"texcache/texture"
	"texcache/textures"
)

var capNames = map[string]format.Capability{
	"s3tc": format.CapS3TC,
	"rgtc": format.CapRGTC,
	"bptc": format.CapBPTC,
}

// backendFlags are shared by the commands that upload textures.
type backendFlags struct {
	useGL *bool
	caps  *string
}

func addBackendFlags(fs *flag.FlagSet) backendFlags {
	return backendFlags{
		useGL: fs.Bool("gl", false, "upload through an OpenGL context and let the driver report capabilities"),
		caps:  fs.String("caps", "s3tc,rgtc", "capabilities of the in-memory backend (s3tc, rgtc, bptc)"),
	}
}

// open returns the backend and a function releasing it.
func (f backendFlags) open() (textures.Backend, func(), error) {
	if !*f.useGL {
		var caps []format.Capability
		for _, name := range strings.Split(*f.caps, ",") {
			name = strings.TrimSpace(strings.ToLower(name))
			if name == "" {
				continue
			}
			c, ok := capNames[name]
			if !ok {
				return nil, nil, fmt.Errorf("unknown capability %q", name)
			}
			caps = append(caps, c)
		}
		return textures.NewMemoryBackend(caps...), func() {}, nil
	}

	ctx, err := opengl.NewContext(opengl.DefaultContextConfig())
	if err != nil {
		return nil, nil, err
	}
	backend, err := opengl.NewBackend()
	if err != nil {
		ctx.Destroy()
		return nil, nil, err
	}
	return backend, ctx.Destroy, nil
}

func runCompress(cfg textures.Config, args []string) error {
	fs := flag.NewFlagSet("compress", flag.ExitOnError)
	bf := addBackendFlags(fs)
	normal := fs.Bool("normal", false, "treat the images as normal maps")
	noCompress := fs.Bool("nocompress", false, "upload uncompressed and skip the cache")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("no input images specified")
	}

	backend, closeBackend, err := bf.open()
	if err != nil {
		return err
	}
	defer closeBackend()

	loader, err := textures.NewLoader(cfg, backend)
	if err != nil {
		return err
	}
	m := textures.NewManager(loader)
	defer m.DestroyAll()

	opts := texture.LoadOptions{Normal: *normal, NoCompress: *noCompress}
	failed := 0
	for _, path := range fs.Args() {
		tex, err := m.LoadTexture(path, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		report(tex)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d textures failed", failed, fs.NArg())
	}
	return nil
}

func runWarm(cfg textures.Config, args []string) error {
	fs := flag.NewFlagSet("warm", flag.ExitOnError)
	bf := addBackendFlags(fs)
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("no model specified")
	}

	backend, closeBackend, err := bf.open()
	if err != nil {
		return err
	}
	defer closeBackend()

	loader, err := textures.NewLoader(cfg, backend)
	if err != nil {
		return err
	}
	m := textures.NewManager(loader)
	defer m.DestroyAll()

	for _, path := range fs.Args() {
		loaded, err := m.LoadGLTF(path)
		if err != nil {
			return err
		}
		for _, tex := range loaded {
			report(tex)
		}
	}
	return nil
}

func report(tex *textures.Loaded) {
	source := "encoded"
	if tex.CacheHit() {
		source = "cache"
	}
	fmt.Printf("%s: %dx%d %s (%s)\n", tex.Name, tex.Width, tex.Height, tex.Format, source)
}

func runInspect(cfg textures.Config, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Parse(args)

	store := cache.NewStore(cfg.DataDir)
	infos, err := store.Entries()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Printf("%s: empty\n", store.Dir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSIZE\tDIMENSIONS\tFORMAT\tSOURCE\tCODEC")
	for _, info := range infos {
		key := info.Key
		if len(key) > 16 {
			key = key[:16]
		}
		if info.Err != nil {
			fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t%v\n", key, cache.SizeMetric(info.Size), info.Err)
			continue
		}
		h := info.Header
		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\t%s\t%s\n",
			key, cache.SizeMetric(info.Size), h.Width, h.Height, h.InternalFormat, h.PixelFormat, h.Codec)
	}
	return w.Flush()
}

func runPurge(cfg textures.Config, args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	all := fs.Bool("all", false, "remove every entry, not only unreadable ones")
	fs.Parse(args)

	n, err := cache.NewStore(cfg.DataDir).Purge(*all)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d cache entries\n", n)
	return nil
}
