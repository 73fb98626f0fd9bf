package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// defaultConfigPath is probed when --config is not given.
const defaultConfigPath = "faulttrace.toml"

// toolConfig is the faulttrace.toml shape.
type toolConfig struct {
	SearchPaths []string `toml:"search_paths"`
	MaxDepth    int      `toml:"max_depth"`
	RingSize    int      `toml:"ring_size"`
	Format      string   `toml:"format"` // text|ndjson
	Output      string   `toml:"output"` // "-" or empty for stderr
}

func defaultToolConfig() toolConfig {
	return toolConfig{
		RingSize: 64,
		Format:   "text",
	}
}

// loadToolConfig reads the options file. A missing default file is fine;
// a missing explicit file is an error.
func loadToolConfig(path string) (toolConfig, error) {
	cfg := defaultToolConfig()
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("loading %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	switch cfg.Format {
	case "text", "ndjson":
	default:
		return cfg, fmt.Errorf("%s: invalid format %q (expected: text|ndjson)", path, cfg.Format)
	}
	return cfg, nil
}

// openOutput resolves the report output destination.
func openOutput(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stderr, nil
	}
	return os.Create(path)
}
