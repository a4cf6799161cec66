package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_SaveOpenRemove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, 0)
	require.NoError(t, err)

	name, size, err := s.Save(ctx, "Scontrino.PDF", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	rc, err := s.Open(ctx, name)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(body))

	require.NoError(t, s.Remove(ctx, name))
	_, err = os.Stat(filepath.Join(dir, name))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Remove(ctx, name))

	_, err = s.Open(ctx, name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, 4)
	require.NoError(t, err)

	_, _, err = s.Save(context.Background(), "big.bin", strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, size, err := s.Save(context.Background(), "ok.bin", strings.NewReader("1234"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), 0)
	require.NoError(t, err)

	for _, name := range []string{"", "../etc/passwd", "a/b", ".hidden"} {
		_, err := s.Open(context.Background(), name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}
}

func TestStoredName_Unique(t *testing.T) {
	a := StoredName("photo.jpg")
	b := StoredName("photo.jpg")
	assert.NotEqual(t, a, b)
	assert.Equal(t, ".jpg", filepath.Ext(a))
	assert.Equal(t, "", filepath.Ext(StoredName("noext")))
}
