package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageUpload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "/uploads/")
	require.NoError(t, err)

	obj, err := store.Upload(context.Background(), "../notes final.pdf", "application/pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), obj.Size)
	assert.True(t, strings.HasPrefix(obj.URL, "/uploads/"))
	assert.True(t, strings.HasSuffix(obj.Key, "notes_final.pdf"))

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(obj.Key)))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(obj.Key))
	require.NoError(t, store.Delete(obj.Key))
}

func TestLocalStorageUploadCancelled(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Upload(ctx, "a.txt", "text/plain", strings.NewReader("x"))
	require.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "file", sanitizeName(""))
	assert.Equal(t, "a_b.png", sanitizeName("dir/a b.png"))
}
