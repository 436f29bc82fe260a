package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	CDP     CDPConfig     `toml:"cdp"`
	Worker  WorkerConfig  `toml:"worker"`
	Emulate EmulateConfig `toml:"emulate"`
}

type CDPConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type WorkerConfig struct {
	Port      int    `toml:"port"`
	AuthToken string `toml:"auth_token"`
}

type EmulateConfig struct {
	// Platform overrides the platform string read from the page, for
	// deterministic shortcut emulation in CI. Empty means ask the page.
	Platform string `toml:"platform"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		CDP: CDPConfig{
			Host: "localhost",
			Port: 9222,
		},
		Worker: WorkerConfig{
			Port:      39390,
			AuthToken: "",
		},
		Emulate: EmulateConfig{
			Platform: "",
		},
	}
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}

	configDir := filepath.Join(base, "keybridge")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads the configuration from the TOML file at path. An empty path
// means the default location. If the file doesn't exist, it is created with
// default values.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()
		if err := Save(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}

	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to the TOML file at path.
func Save(cfg *Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
