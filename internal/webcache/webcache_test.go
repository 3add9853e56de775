package webcache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Title string
	Body  string
}

func TestPutGet(t *testing.T) {
	c := New(t.TempDir())
	url := "https://example.com/a?b=c"

	var got page
	assert.False(t, c.Get("page", url, &got))

	require.NoError(t, c.Put("page", url, page{Title: "A", Body: "text"}))
	require.True(t, c.Get("page", url, &got))
	assert.Equal(t, page{Title: "A", Body: "text"}, got)

	assert.False(t, c.Get("transcript", url, &got), "kinds are separate")

	require.NoError(t, c.Delete("page", url))
	assert.False(t, c.Get("page", url, &got))
	require.NoError(t, c.Delete("page", url))
}

func TestExpiredAndCorruptEntriesMiss(t *testing.T) {
	c := New(t.TempDir())
	require.NoError(t, c.Put("page", "k", page{Title: "old"}))

	c.MaxAge = time.Nanosecond
	time.Sleep(time.Millisecond)
	var got page
	assert.False(t, c.Get("page", "k", &got))

	c.MaxAge = 0
	require.NoError(t, os.WriteFile(c.path("page", "k"), []byte("{not json"), 0o644))
	assert.False(t, c.Get("page", "k", &got))
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	require.NoError(t, c.Put("page", "k", 1))
	var v int
	assert.False(t, c.Get("page", "k", &v))
}
