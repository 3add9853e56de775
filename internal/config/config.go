// Package config loads the machine-wide kmd configuration, the state file
// next to it, and per-workspace settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultAPIKeyEnv is read for the LLM API key unless [llm] names another
// variable.
const DefaultAPIKeyEnv = "ANTHROPIC_API_KEY"

const defaultLogLevel = "info"

// ErrInvalidConfig is returned when config.toml parses but holds values kmd
// cannot use.
var ErrInvalidConfig = errors.New("invalid config")

// Config is ~/.config/kmd/config.toml.
type Config struct {
	// DefaultWorkspace names an entry of Workspaces.
	DefaultWorkspace string `toml:"default_workspace"`

	// StateFile moves state.toml. Relative paths are taken from the config
	// file's directory.
	StateFile string `toml:"state_file"`

	// Workspaces maps names to workspace roots.
	Workspaces map[string]string `toml:"workspaces" validate:"dive,required"`

	// LogLevel is the zap level of each workspace's .logs/kmd.log.
	LogLevel string `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	UI  UIConfig  `toml:"ui"`
	LLM LLMConfig `toml:"llm"`
}

// UIConfig holds terminal theming.
type UIConfig struct {
	// Accent is an ANSI code ("0" to "255") or "#rrggbb".
	Accent string `toml:"accent"`

	// CodeTheme is a chroma style name for code blocks in `kmd show`.
	CodeTheme string `toml:"code_theme"`
}

// LLMConfig names the environment variable holding the API key. The key is
// never stored in the file.
type LLMConfig struct {
	APIKeyEnv string `toml:"api_key_env"`
}

// GetWorkspacePath returns the root of the named workspace, or of the
// default workspace when name is empty.
func (c *Config) GetWorkspacePath(name string) (string, error) {
	if name == "" {
		if c.DefaultWorkspace == "" {
			return "", errors.New("no default workspace configured")
		}
		name = c.DefaultWorkspace
	}
	path, ok := c.Workspaces[name]
	if !ok {
		return "", fmt.Errorf("workspace '%s' not found in config", name)
	}
	return path, nil
}

// ListWorkspaces returns a copy of the name to root map.
func (c *Config) ListWorkspaces() map[string]string {
	out := make(map[string]string, len(c.Workspaces))
	for name, path := range c.Workspaces {
		out[name] = path
	}
	return out
}

// GetLogLevel returns LogLevel, defaulting to "info".
func (c *Config) GetLogLevel() string {
	if lvl := strings.TrimSpace(c.LogLevel); lvl != "" {
		return lvl
	}
	return defaultLogLevel
}

// APIKey returns the LLM API key from the environment, or "".
func (c *Config) APIKey() string {
	name := strings.TrimSpace(c.LLM.APIKeyEnv)
	if name == "" {
		name = DefaultAPIKeyEnv
	}
	return os.Getenv(name)
}

// Load reads the config at DefaultPath. No file means an empty Config.
func Load() (*Config, error) {
	cfg, err := LoadFrom(DefaultPath())
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}

// LoadFrom reads and validates the config at path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrInvalidConfig, err)
	}
	return cfg, nil
}

// DefaultPath is ~/.config/kmd/config.toml when that file exists, else the
// platform config directory.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdg := filepath.Join(home, ".config", "kmd", "config.toml")
		if _, err := os.Stat(xdg); err == nil {
			return xdg
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "kmd", "config.toml")
	}
	return "config.toml"
}
