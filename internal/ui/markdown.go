package ui

import (
	"strings"

	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
)

const (
	defaultCodeTheme = "monokai"
	markdownMargin   = 2
)

var codeTheme = defaultCodeTheme

// ConfigureMarkdownCodeTheme sets the chroma style used for fenced code.
// Names chroma does not know select the default.
func ConfigureMarkdownCodeTheme(name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := chromastyles.Registry[name]; !ok {
		name = defaultCodeTheme
	}
	codeTheme = name
}

// RenderMarkdown renders an item body for `kmd show`, wrapped to width.
func RenderMarkdown(body string, width int) (string, error) {
	if width <= 0 {
		width = FallbackWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(markdownStyle()),
		glamour.WithWordWrap(width-2*markdownMargin),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(body)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

// markdownStyle is glamour's dark style with plain headings in the accent
// color and code blocks highlighted by codeTheme.
func markdownStyle() ansi.StyleConfig {
	s := styles.DarkStyleConfig
	s.Document.Margin = ptr(uint(markdownMargin))
	s.Document.Color = nil

	s.H1.BackgroundColor = nil
	s.H1.Color = nil
	s.H1.Prefix = "# "
	s.H1.Suffix = ""
	s.H1.Underline = ptr(true)
	if c, ok := AccentColor(); ok {
		s.Heading.Color = ptr(c)
	}

	// A non-nil Chroma overrides Theme.
	s.CodeBlock.Chroma = nil
	s.CodeBlock.Theme = codeTheme
	return s
}

func ptr[T any](v T) *T { return &v }
