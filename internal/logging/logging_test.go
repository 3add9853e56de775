package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".logs")
	logger, err := New(dir, "debug", false)
	require.NoError(t, err)

	logger.Info("saved item", zap.String("path", "notes/a.note.md"))
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"saved item"`)
	assert.Contains(t, string(data), `"path":"notes/a.note.md"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(t.TempDir(), "loud", false)
	assert.Error(t, err)
}
