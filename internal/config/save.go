package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aidanlsb/kmd/internal/atomicfile"
)

// fileConfig is Config as written back to disk. Blank values and empty
// tables are left out so a saved file stays as short as a hand-written one.
type fileConfig struct {
	DefaultWorkspace string            `toml:"default_workspace,omitempty"`
	StateFile        string            `toml:"state_file,omitempty"`
	LogLevel         string            `toml:"log_level,omitempty"`
	Workspaces       map[string]string `toml:"workspaces,omitempty"`
	UI               *fileUI           `toml:"ui,omitempty"`
	LLM              *fileLLM          `toml:"llm,omitempty"`
}

type fileUI struct {
	Accent    string `toml:"accent,omitempty"`
	CodeTheme string `toml:"code_theme,omitempty"`
}

type fileLLM struct {
	APIKeyEnv string `toml:"api_key_env,omitempty"`
}

func toFile(c *Config) fileConfig {
	trim := strings.TrimSpace
	f := fileConfig{
		DefaultWorkspace: trim(c.DefaultWorkspace),
		StateFile:        trim(c.StateFile),
		LogLevel:         trim(c.LogLevel),
		Workspaces:       c.Workspaces,
	}
	if ui := (fileUI{Accent: trim(c.UI.Accent), CodeTheme: trim(c.UI.CodeTheme)}); ui != (fileUI{}) {
		f.UI = &ui
	}
	if env := trim(c.LLM.APIKeyEnv); env != "" {
		f.LLM = &fileLLM{APIKeyEnv: env}
	}
	return f
}

// SaveTo replaces the config file at path atomically.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(toFile(cfg)); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
