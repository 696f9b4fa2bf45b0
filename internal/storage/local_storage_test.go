package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLocalStorage(t *testing.T) {
	tempDir := t.TempDir()

	storage, err := NewLocalStorage(tempDir)
	require.NoError(t, err)
	require.NotNil(t, storage)
	require.Equal(t, tempDir, storage.basePath)

	info, err := os.Stat(filepath.Join(tempDir, "models"))
	require.NoError(t, err, "models directory should be created")
	require.True(t, info.IsDir())
}

func TestLocalStorage_SaveOpenDelete(t *testing.T) {
	tempDir := t.TempDir()
	storage, err := NewLocalStorage(tempDir)
	require.NoError(t, err)
	ctx := context.Background()

	name := "1700000000-abcdefghij.glb"
	content := "glTF binary payload"

	err = storage.Save(ctx, name, strings.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	expectedPath := filepath.Join(tempDir, "models", name)
	fileInfo, err := os.Stat(expectedPath)
	require.NoError(t, err, "file should exist after save")
	require.Equal(t, int64(len(content)), fileInfo.Size())

	rc, size, err := storage.Open(ctx, name)
	require.NoError(t, err)
	retrieved, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	require.Equal(t, content, string(retrieved))
	require.Equal(t, int64(len(content)), size)

	err = storage.Save(ctx, name, strings.NewReader("again"), 5)
	require.Error(t, err, "an existing name is never overwritten")

	require.NoError(t, storage.Delete(ctx, name))
	_, err = os.Stat(expectedPath)
	require.True(t, os.IsNotExist(err), "file should not exist after delete")

	require.NoError(t, storage.Delete(ctx, name), "delete is idempotent")
}

func TestLocalStorage_OpenNonExistent(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, _, err = storage.Open(context.Background(), "missing.glb")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	tempDir := t.TempDir()
	storage, err := NewLocalStorage(tempDir)
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"../escape.glb", "a/b.glb", `a\b.glb`, "..", ""} {
		err := storage.Save(ctx, name, strings.NewReader("x"), 1)
		require.ErrorIs(t, err, ErrInvalidName, name)

		_, _, err = storage.Open(ctx, name)
		require.ErrorIs(t, err, ErrInvalidName, name)

		err = storage.Delete(ctx, name)
		require.ErrorIs(t, err, ErrInvalidName, name)
	}

	_, err = os.Stat(filepath.Join(tempDir, "escape.glb"))
	require.True(t, os.IsNotExist(err))
}

func TestLocalStorage_SaveWithLargeData(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	largeContent := bytes.Repeat([]byte{'a'}, 1024*1024)

	err = storage.Save(context.Background(), "large.obj", bytes.NewReader(largeContent), int64(len(largeContent)))
	require.NoError(t, err)

	_, size, err := storage.Open(context.Background(), "large.obj")
	require.NoError(t, err)
	require.Equal(t, int64(len(largeContent)), size)
}
