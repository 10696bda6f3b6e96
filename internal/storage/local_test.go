package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndRemove(t *testing.T) {
	l, err := NewLocal(filepath.Join(t.TempDir(), "uploads"), nil)
	require.NoError(t, err)

	path, err := l.Save("../../etc/nota.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, l.Dir(), filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_nota.pdf"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, l.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// removing twice is fine
	assert.NoError(t, l.Remove(path))
	assert.NoError(t, l.Remove(""))
}

func TestSaveSameNameTwice(t *testing.T) {
	l, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	a, err := l.Save("nota.pdf", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := l.Save("nota.pdf", strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
