package frontmatter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	body := "# Heading\n\nSome text.\n"
	meta := map[string]any{
		"type":  "note",
		"title": "Hello: world",
		"relations": map[string]any{
			"derived_from": []any{"resources/a.resource.md"},
		},
		"extra": map[string]any{"count": 3},
	}

	for _, style := range []Style{StyleYAML, StyleHTML, StyleHash} {
		t.Run(style.String(), func(t *testing.T) {
			path := filepath.Join(dir, style.String(), "a.note.md")
			require.NoError(t, Write(path, body, meta, Options{Style: style}))

			gotBody, gotMeta, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, body, gotBody)
			assert.Equal(t, meta, gotMeta)
		})
	}
}

func TestDelimiterStylesEquivalent(t *testing.T) {
	docs := []string{
		"---\ntitle: x\n---\nbody\n",
		"<!---\ntitle: x\n--->\nbody\n",
		"#---\n# title: x\n#---\nbody\n",
		"---  \ntitle: x\n---\t\nbody\n",
	}
	for _, doc := range docs {
		body, meta, err := Parse([]byte(doc))
		require.NoError(t, err, doc)
		assert.Equal(t, "body\n", body)
		assert.Equal(t, map[string]any{"title": "x"}, meta)
	}
}

func TestNoHeader(t *testing.T) {
	body, meta, err := Parse([]byte("just text\n---\n"))
	require.NoError(t, err)
	assert.Equal(t, "just text\n---\n", body)
	assert.Nil(t, meta)

	// The delimiter must be the very first line.
	body, meta, err = Parse([]byte("\n---\ntitle: x\n---\n"))
	require.NoError(t, err)
	assert.Nil(t, meta)
	assert.True(t, strings.HasPrefix(body, "\n---"))
}

func TestDelimiterMustBeFirstLine(t *testing.T) {
	docs := []string{
		"\n---\ntitle: x\n---\nbody\n",
		" ---\ntitle: x\n---\nbody\n",
		"intro\n\n---\ntitle: x\n---\n",
		"# Heading\n<!---\ntitle: x\n--->\n",
	}
	for _, doc := range docs {
		body, meta, err := Parse([]byte(doc))
		require.NoError(t, err, doc)
		assert.Equal(t, doc, body)
		assert.Nil(t, meta, doc)
	}
}

func TestEmptyHeader(t *testing.T) {
	body, meta, err := Parse([]byte("---\n---\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "body", body)
	assert.Equal(t, map[string]any{}, meta)
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]struct {
		content []byte
		want    error
	}{
		"empty":        {nil, ErrEmptyFile},
		"binary":       {[]byte{'%', 'P', 'D', 'F', 0, 0xff, 0xfe}, ErrNotTextFile},
		"unterminated": {[]byte("---\ntitle: x\nbody\n"), ErrUnterminatedMetadata},
		"sequence":     {[]byte("---\n- a\n- b\n---\n"), ErrMalformedMetadata},
		"bad yaml":     {[]byte("---\ntitle: [unclosed\n---\n"), ErrMalformedMetadata},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".md")
			require.NoError(t, os.WriteFile(path, tc.content, 0o644))

			_, _, err := Read(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var fe *FileError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, path, fe.Path)
		})
	}
}

func TestEncodeKeyOrder(t *testing.T) {
	meta := map[string]any{
		"zeta":   1,
		"title":  "t",
		"type":   "note",
		"alpha":  2,
		"source": map[string]any{"arguments": []string{"a"}, "action_name": "proofread"},
	}
	out, err := Encode("", meta, Options{KeyOrder: []string{"source", "action_name", "arguments", "type", "title"}})
	require.NoError(t, err)

	want := "---\n" +
		"source:\n" +
		"  action_name: proofread\n" +
		"  arguments:\n" +
		"    - a\n" +
		"type: note\n" +
		"title: t\n" +
		"alpha: 2\n" +
		"zeta: 1\n" +
		"---\n"
	assert.Equal(t, want, string(out))
}

func TestEncodeEmptyMetadataWritesBodyOnly(t *testing.T) {
	out, err := Encode("hello\n", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestTimestampsSurviveAsParseableText(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC)
	out, err := Encode("", map[string]any{"created_at": ts}, Options{})
	require.NoError(t, err)

	_, meta, err := Parse(out)
	require.NoError(t, err)
	raw := meta["created_at"]
	switch v := raw.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		require.NoError(t, err)
		assert.True(t, ts.Equal(parsed))
	case time.Time:
		assert.True(t, ts.Equal(v))
	default:
		t.Fatalf("unexpected timestamp type %T", raw)
	}
}
