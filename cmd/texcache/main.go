// Command texcache compresses textures into the on-disk texture cache and
// maintains it.
//
// Usage:
//
//	texcache [global options] <command> [options] <args>
//
// Examples:
//
//	texcache compress albedo.png normal.png     # Fill the cache (software DXT)
//	texcache compress -gl -normal normal.png    # Let the driver compress
//	texcache warm scene.glb                     # Cache every texture of a model
//	texcache inspect                            # List cache entries
//	texcache purge -all                         # Empty the cache
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"texcache/core"
	"texcache/textures"
)

var (
	configPath = flag.String("config", "", "JSON texture config (default: built-in defaults)")
	dataDir    = flag.String("data", "", "user data directory holding the cache (overrides config)")
	verbose    = flag.Bool("v", false, "log per-texture details")
)

type command struct {
	name  string
	usage string
	run   func(cfg textures.Config, args []string) error
}

var commands = []command{
	{"compress", "compress [-gl] [-caps list] [-normal] [-nocompress] <image>...", runCompress},
	{"warm", "warm [-gl] [-caps list] <model.gltf|model.glb>...", runWarm},
	{"inspect", "inspect", runInspect},
	{"purge", "purge [-all]", runPurge},
}

func main() {
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no command specified")
		usage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, c := range commands {
		if c.name == args[0] {
			if err := c.run(cfg, args[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
	usage()
	os.Exit(1)
}

func loadConfig() (textures.Config, error) {
	cfg := textures.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = textures.LoadConfig(*configPath); err != nil {
			return cfg, err
		}
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	return cfg, cfg.Validate()
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: texcache [global options] <command> [options] <args>\n\n")
	fmt.Fprintf(os.Stderr, "Global options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  texcache %s\n", c.usage)
	}
}
