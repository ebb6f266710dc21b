package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileStoreWriteAndResolve(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.WriteFile("job-1/scores.xlsx", []byte("data")))

	path, err := store.Abs("job-1/scores.xlsx")
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "data", string(content))
}

func TestFileStoreRejectsEscapingNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../outside.txt", "/etc/passwd", "job/../../outside.txt"} {
		_, err := store.Abs(name)
		require.Error(t, err, "name %q", name)
	}
}

func TestFileStoreSweepRemovesStaleFilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.WriteFile("job-old/report.xlsx", []byte("old")))
	require.NoError(t, store.WriteFile("job-new/report.xlsx", []byte("new")))

	stale := time.Now().Add(-2 * time.Hour)
	oldPath := filepath.Join(dir, "job-old", "report.xlsx")
	require.NoError(t, os.Chtimes(oldPath, stale, stale))

	removed, err := store.Sweep(time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join("job-old", "report.xlsx")}, removed)

	_, err = os.Stat(filepath.Join(dir, "job-old"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "job-new", "report.xlsx"))
	require.NoError(t, err)
}
