package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ConfigFileName is the name of the Colony configuration file.
const ConfigFileName = "colony.toml"

// FindConfigFile walks up from the given directory to find colony.toml.
// Returns the absolute path to the config file, or an empty string if not
// found. Stops at the filesystem root.
func FindConfigFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root.
			return "", nil
		}
		dir = parent
	}
}

// LoadFromFile parses the TOML file at the given path over a defaults-filled
// Config and returns it with the TOML metadata. The metadata can be used to
// detect unknown keys via MetaData.Undecoded().
func LoadFromFile(path string) (*Config, toml.MetaData, error) {
	cfg := NewDefaults()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, md, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, md, nil
}

// Load resolves the effective configuration: defaults, overlaid by
// colony.toml found from startDir (when present), overlaid by environment
// variables. A .env file in the working directory is read first; real
// environment variables win over .env entries.
func Load(startDir string) (*Config, *toml.MetaData, error) {
	// Missing .env is the common case, not an error.
	_ = godotenv.Load()

	path, err := FindConfigFile(startDir)
	if err != nil {
		return nil, nil, err
	}

	cfg := NewDefaults()
	var md *toml.MetaData
	if path != "" {
		loaded, meta, err := LoadFromFile(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
		md = &meta
	}

	applyEnv(cfg)
	return cfg, md, nil
}

// applyEnv overlays COLONY_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("COLONY_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("COLONY_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("COLONY_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("COLONY_LLM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LLM.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("COLONY_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
}
