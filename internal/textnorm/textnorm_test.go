package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aidanlsb/kmd/internal/model"
)

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing space", "a  \nb\t\n", "a\nb\n"},
		{"blank runs", "a\n\n\n\nb", "a\n\nb\n"},
		{"heading spacing", "intro\n# Title\ntext", "intro\n\n# Title\n\ntext\n"},
		{"leading blanks", "\n\n# Title\n", "# Title\n"},
		{"not a heading", "#hashtag\nnext", "#hashtag\nnext\n"},
		{"fence untouched", "```\ncode  \n\n\n# not heading\n```\nafter", "```\ncode  \n\n\n# not heading\n```\nafter\n"},
		{"only whitespace", "  \n\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Markdown(tt.in))
		})
	}
}

func TestMarkdownIdempotent(t *testing.T) {
	in := "# A\ntext  \n\n\n## B\n- item\n```go\nx := 1\n```\n"
	once := Markdown(in)
	assert.Equal(t, once, Markdown(once))
}

func TestBody(t *testing.T) {
	// Decomposed "e" plus combining acute composes to a single rune.
	assert.Equal(t, "caf\u00e9\n", Body("cafe\u0301\r\n", model.FormatMarkdown))
	assert.Equal(t, "a\nb\n", Body("a \r\nb", model.FormatPlaintext))
	assert.Equal(t, "<p>x</p>  \n", Body("<p>x</p>  \r\n", model.FormatHTML))
	assert.Equal(t, "", Body("", model.FormatMarkdown))
}
