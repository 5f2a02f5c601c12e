// Package config provides configuration management for WireGuard Manager.
// It handles loading, saving, and overriding application settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yllada/wg-manager/common"
)

// Environment variables that override file values.
const (
	EnvBackend           = "WG_MANAGER_BACKEND"
	EnvWgPath            = "WG_MANAGER_WG_PATH"
	EnvRegistryFile      = "WG_MANAGER_REGISTRY_FILE"
	EnvHistoryFile       = "WG_MANAGER_HISTORY_FILE"
	EnvEnableHistory     = "WG_MANAGER_ENABLE_HISTORY"
	EnvShowNotifications = "WG_MANAGER_SHOW_NOTIFICATIONS"
	EnvUseKeyring        = "WG_MANAGER_USE_KEYRING"
	EnvLogToFile         = "WG_MANAGER_LOG_TO_FILE"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// Backend selects how WireGuard parameters are applied: "netlink" or "wg-tool".
	Backend string `yaml:"backend"`
	// WgPath is the wg binary used by the wg-tool backend.
	WgPath string `yaml:"wg_path"`
	// RegistryFile is where the tunnel list is persisted.
	RegistryFile string `yaml:"registry_file"`
	// HistoryFile is the SQLite event journal.
	HistoryFile string `yaml:"history_file"`
	// EnableHistory records every lifecycle operation.
	EnableHistory bool `yaml:"enable_history"`
	// ShowNotifications enables desktop notifications for connection events.
	ShowNotifications bool `yaml:"show_notifications"`
	// UseKeyring allows private keys to come from the secret store.
	UseKeyring bool `yaml:"use_keyring"`
	// LogToFile tees logs into the rotating log file.
	LogToFile bool `yaml:"log_to_file"`

	path string
}

// DefaultConfig returns the default configuration rooted at configDir.
func DefaultConfig(configDir string) *Config {
	return &Config{
		Backend:           common.BackendNetlink,
		WgPath:            "wg",
		RegistryFile:      filepath.Join(configDir, common.RegistryFileName),
		HistoryFile:       filepath.Join(configDir, common.HistoryFileName),
		EnableHistory:     true,
		ShowNotifications: true,
		UseKeyring:        true,
		LogToFile:         false,
		path:              filepath.Join(configDir, common.ConfigFileName),
	}
}

// Load loads the configuration from path, or from the default location when
// path is empty. A missing file is created with default values. Values from
// a .env file and WG_MANAGER_* variables are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		dir, err := common.GetConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, common.ConfigFileName)
	}

	cfg := DefaultConfig(filepath.Dir(path))
	cfg.path = path

	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	default:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: parsing %s: %v", common.ErrConfigLoad, path, err)
		}
	}

	// A missing .env is the common case.
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Backend = getEnv(EnvBackend, c.Backend)
	c.WgPath = getEnv(EnvWgPath, c.WgPath)
	c.RegistryFile = getEnv(EnvRegistryFile, c.RegistryFile)
	c.HistoryFile = getEnv(EnvHistoryFile, c.HistoryFile)

	for name, field := range map[string]*bool{
		EnvEnableHistory:     &c.EnableHistory,
		EnvShowNotifications: &c.ShowNotifications,
		EnvUseKeyring:        &c.UseKeyring,
		EnvLogToFile:         &c.LogToFile,
	} {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", common.ErrConfigLoad, name, v)
		}
		*field = b
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// validate verifies that configuration values are usable.
func (c *Config) validate() error {
	switch c.Backend {
	case common.BackendNetlink, common.BackendWgTool:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, common.BackendNetlink, common.BackendWgTool)
	}
	if c.WgPath == "" {
		c.WgPath = "wg"
	}
	if c.RegistryFile == "" {
		return fmt.Errorf("registry_file must not be empty")
	}
	if c.EnableHistory && c.HistoryFile == "" {
		return fmt.Errorf("history_file must be set when enable_history is true")
	}
	return nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Save saves the configuration to its file.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: serializing: %v", common.ErrConfigSave, err)
	}
	if err := common.WriteFileAtomic(c.path, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}
	return nil
}
