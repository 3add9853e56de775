package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/aidanlsb/kmd/internal/atomicfile"
)

// StateVersion is written into every state file.
const StateVersion = 1

const stateFileName = "state.toml"

// State is what kmd remembers between runs on this machine. Unlike Config it
// is rewritten by commands, never by hand.
type State struct {
	Version         int       `toml:"version"`
	ActiveWorkspace string    `toml:"active_workspace,omitempty"`
	SwitchedAt      time.Time `toml:"switched_at,omitempty"`
}

// Activate records name as the active workspace.
func (s *State) Activate(name string, now time.Time) {
	s.ActiveWorkspace = strings.TrimSpace(name)
	s.SwitchedAt = now.UTC().Truncate(time.Second)
}

func (s *State) normalize() {
	if s.Version == 0 {
		s.Version = StateVersion
	}
	s.ActiveWorkspace = strings.TrimSpace(s.ActiveWorkspace)
}

// ResolveConfigPath returns explicit when set, else DefaultPath.
func ResolveConfigPath(explicit string) string {
	if strings.TrimSpace(explicit) == "" {
		return DefaultPath()
	}
	return explicit
}

// ResolveStatePath places the state file. A state_file setting wins and is
// taken relative to the config file's directory; otherwise state.toml sits
// next to the config file.
func ResolveStatePath(configPath string, cfg *Config) string {
	dir := filepath.Dir(ResolveConfigPath(configPath))
	var override string
	if cfg != nil {
		override = filepath.FromSlash(strings.TrimSpace(cfg.StateFile))
	}
	switch {
	case override == "":
		return filepath.Join(dir, stateFileName)
	case filepath.IsAbs(override), strings.HasPrefix(override, string(filepath.Separator)):
		return filepath.Clean(override)
	default:
		return filepath.Join(dir, override)
	}
}

// LoadState reads the state file. A missing file is an empty State.
func LoadState(path string) (*State, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("state path is required")
	}
	state := &State{}
	if _, err := toml.DecodeFile(path, state); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	state.normalize()
	return state, nil
}

// SaveState replaces the state file atomically.
func SaveState(path string, state *State) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("state path is required")
	}
	out := State{}
	if state != nil {
		out = *state
	}
	out.normalize()

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write state %s: %w", path, err)
	}
	return nil
}
