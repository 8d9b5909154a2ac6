// Package local_test tests the local filesystem blob store.
package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobscall-crawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "job-data")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "testfile")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	t.Run("ValidPut", func(t *testing.T) {
		path := "20240501/jobscallme/html/backend.html"
		data := []byte("<article>hello</article>")
		uri, err := store.PutObject(context.Background(), path, "text/html", bytes.NewReader(data))
		require.NoError(t, err)

		assert.Equal(t, "file://"+filepath.Join(tempDir, path), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(tempDir, path))
		require.NoError(t, err)
		assert.Equal(t, data, readData)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "text/plain", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../escape.txt", "text/plain", bytes.NewReader([]byte("data")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path traversal")
	})
}

func TestGetAndListObjects(t *testing.T) {
	ctx := context.Background()
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	for _, p := range []string{
		"20240501/jobscallme/markdown/b.md",
		"20240501/jobscallme/markdown/a.md",
		"20240501/jobscallme/html/a.html",
		"20240502/jobscallme/markdown/c.md",
	} {
		_, err := store.PutObject(ctx, p, "text/markdown", bytes.NewReader([]byte(p)))
		require.NoError(t, err)
	}

	paths, err := store.ListObjects(ctx, "20240501/jobscallme/markdown")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20240501/jobscallme/markdown/a.md",
		"20240501/jobscallme/markdown/b.md",
	}, paths)

	all, err := store.ListObjects(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	missing, err := store.ListObjects(ctx, "19990101")
	require.NoError(t, err)
	assert.Empty(t, missing)

	data, err := store.GetObject(ctx, "20240501/jobscallme/markdown/a.md")
	require.NoError(t, err)
	assert.Equal(t, "20240501/jobscallme/markdown/a.md", string(data))

	_, err = store.GetObject(ctx, "20240501/nope.md")
	assert.Error(t, err)

	_, err = store.GetObject(ctx, "../../etc/passwd")
	assert.Error(t, err)
}
