// Package config loads ipvc's user-level settings: the default signing
// identity, the preferred object-store backend, and daemon tuning knobs.
// Settings are read from $IPVC_CONFIG_HOME/config.toml (or
// ~/.config/ipvc/config.toml) via viper, with environment-variable
// overrides (IPVC_*). WriteDefault writes a default file with
// BurntSushi/toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config holds the user-level settings the CLI reads at startup.
type Config struct {
	// Backend selects the object-store implementation: "sqlite" or
	// "libsql".
	Backend string `toml:"backend" mapstructure:"backend"`

	// DataDir is the directory holding the object-store database file
	// (ipvc.db).
	DataDir string `toml:"data_dir" mapstructure:"data_dir"`

	// SigningKeyPath points at the ed25519 key file the CLI loads (or
	// creates) through internal/sign/localsigner for every repository.
	SigningKeyPath string `toml:"signing_key_path" mapstructure:"signing_key_path"`

	// WatchDebounceMillis is how long `ipvc watch` ignores further
	// filesystem events after it has triggered a rescan.
	WatchDebounceMillis int `toml:"watch_debounce_millis" mapstructure:"watch_debounce_millis"`
}

// Default returns the settings used when no config file is present.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Backend:             "sqlite",
		DataDir:             filepath.Join(home, ".local", "share", "ipvc"),
		SigningKeyPath:      filepath.Join(home, ".config", "ipvc", "identity.key"),
		WatchDebounceMillis: 200,
	}
}

// Dir returns the config directory, honoring IPVC_CONFIG_HOME.
func Dir() (string, error) {
	if d := os.Getenv("IPVC_CONFIG_HOME"); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(home, ".config", "ipvc"), nil
}

// Load reads the config file, falling back to defaults for anything
// unset, and applying IPVC_-prefixed environment overrides.
func Load() (Config, error) {
	cfg := Default()

	dir, err := Dir()
	if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("IPVC")
	v.AutomaticEnv()

	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("signing_key_path", cfg.SigningKeyPath)
	v.SetDefault("watch_debounce_millis", cfg.WatchDebounceMillis)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// WriteDefault writes a commented-free default config.toml to dir if one
// doesn't already exist. The CLI does not call it; Load works without a
// file.
func WriteDefault(dir string) error {
	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	return enc.Encode(Default())
}
