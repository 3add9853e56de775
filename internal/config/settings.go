package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/aidanlsb/kmd/internal/atomicfile"
)

// Defaults applied to workspace settings.
const (
	DefaultModel          = "claude-sonnet-4-5"
	DefaultMaxTokens      = 4096
	DefaultHTTPTimeout    = 30
	DefaultUserAgent      = "kmd/1.0 (+https://github.com/aidanlsb/kmd)"
	DefaultRequestsPerSec = 2.0
)

// ErrInvalidSettings is returned when workspace settings fail validation.
var ErrInvalidSettings = errors.New("invalid workspace settings")

var (
	validate       = validator.New()
	actionNameExpr = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

func init() {
	_ = validate.RegisterValidation("actionname", func(fl validator.FieldLevel) bool {
		return actionNameExpr.MatchString(fl.Field().String())
	})
}

// Settings is the per-workspace configuration in .settings/settings.toml.
type Settings struct {
	// DefaultModel is used by LLM actions that do not name a model.
	DefaultModel string `toml:"default_model" validate:"required"`

	// MaxTokens caps LLM completions.
	MaxTokens int `toml:"max_tokens" validate:"gte=1"`

	Transcribe TranscribeSettings `toml:"transcribe"`
	HTTP       HTTPSettings       `toml:"http"`

	// Actions are user-defined LLM actions.
	Actions []ActionDef `toml:"actions" validate:"dive"`
}

// TranscribeSettings configures the external transcription command. The URL
// is appended as the final argument.
type TranscribeSettings struct {
	Command []string `toml:"command"`
}

// HTTPSettings configures the page fetcher.
type HTTPSettings struct {
	TimeoutSeconds    int     `toml:"timeout_seconds" validate:"gte=1"`
	UserAgent         string  `toml:"user_agent" validate:"required"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gt=0"`
}

// Timeout returns the fetch timeout as a duration.
func (h HTTPSettings) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// ActionDef is a user-defined action: an LLM prompt, or with Steps a
// sequence (or, with Combine, a combo) of other actions.
type ActionDef struct {
	Name          string   `toml:"name" validate:"required,actionname"`
	Description   string   `toml:"description"`
	Steps         []string `toml:"steps,omitempty" validate:"omitempty,min=2,dive,required"`
	Combine       bool     `toml:"combine"`
	Model         string   `toml:"model"`
	SystemMessage string   `toml:"system_message"`
	Template      string   `toml:"template" validate:"required_without=Steps"`
	TitleTemplate string   `toml:"title_template"`
	OutputType    string   `toml:"output_type" validate:"omitempty,oneof=note question concept answer resource description"`
	Precondition  string   `toml:"precondition" validate:"omitempty,oneof=has_url has_body is_markdown is_html is_text"`
	MinArgs       int      `toml:"min_args" validate:"gte=0"`
	MaxArgs       int      `toml:"max_args" validate:"gte=0"`
	ReplacesInput bool     `toml:"replaces_input"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.DefaultModel == "" {
		s.DefaultModel = DefaultModel
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if s.HTTP.TimeoutSeconds == 0 {
		s.HTTP.TimeoutSeconds = DefaultHTTPTimeout
	}
	if s.HTTP.UserAgent == "" {
		s.HTTP.UserAgent = DefaultUserAgent
	}
	if s.HTTP.RequestsPerSecond == 0 {
		s.HTTP.RequestsPerSecond = DefaultRequestsPerSec
	}
}

// Validate checks field constraints and that action names are unique.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	seen := make(map[string]bool, len(s.Actions))
	for _, a := range s.Actions {
		if seen[a.Name] {
			return fmt.Errorf("%w: duplicate action %q", ErrInvalidSettings, a.Name)
		}
		seen[a.Name] = true
		if a.MaxArgs > 0 && a.MaxArgs < a.MinArgs {
			return fmt.Errorf("%w: action %q has max_args below min_args", ErrInvalidSettings, a.Name)
		}
	}
	return nil
}

// LoadSettings reads workspace settings from path. A missing file yields
// the defaults.
func LoadSettings(path string) (*Settings, error) {
	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// SaveSettings writes workspace settings atomically.
func SaveSettings(path string, s *Settings) error {
	if s == nil {
		s = DefaultSettings()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", path, err)
	}
	return nil
}
