package slugs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aidanlsb/kmd/internal/model"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My First Note", "my_first_note"},
		{"UPPER CASE", "upper_case"},
		{"file-name", "file_name"},
		{"Special: Characters!", "special_characters"},
		{"Café déjà vu", "cafe_deja_vu"},
		{"!!!", "untitled"},
		{"", "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestMakeTruncatesAtWordBoundary(t *testing.T) {
	long := strings.Repeat("word ", 20)
	got := Make(long)
	assert.LessOrEqual(t, len(got), MaxLength)
	assert.False(t, strings.HasSuffix(got, "_"))
	assert.True(t, strings.HasSuffix(got, "word"))

	oneToken := strings.Repeat("a", 80)
	assert.Equal(t, strings.Repeat("a", MaxLength), Make(oneToken))
}

func TestMakeDeterministic(t *testing.T) {
	assert.Equal(t, Make("Hello, World"), Make("Hello, World"))
}

func TestUnique(t *testing.T) {
	taken := map[string]bool{"hello": true, "hello_1": true}
	has := func(s string) bool { return taken[s] }

	assert.Equal(t, "other", Unique("other", has))
	assert.Equal(t, "hello_2", Unique("hello", has))
}

func TestForItem(t *testing.T) {
	item := &model.Item{Type: model.TypeNote, Format: model.FormatMarkdown, Title: "My First Note"}
	none := func(string) bool { return false }

	stem := For(item, none)
	assert.Equal(t, "my_first_note", stem)
	assert.Equal(t, "my_first_note.note.md", Filename(stem, item))

	taken := func(s string) bool { return s == "my_first_note" }
	assert.Equal(t, "my_first_note_1", For(item, taken))
}

func TestStemOf(t *testing.T) {
	assert.Equal(t, "my_note", StemOf("my_note.note.md"))
	assert.Equal(t, "plain", StemOf("plain"))
}
