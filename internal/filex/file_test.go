package filex

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureDir_RelativeCreatesInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureDir("uploads")
	require.NoError(t, err)

	want := filepath.Join(tmp, "uploads")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureDir_AbsoluteAndIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	first, err := EnsureDir(dir)
	require.NoError(t, err)
	second, err := EnsureDir(dir)
	require.NoError(t, err)

	require.Equal(t, dir, first)
	require.Equal(t, first, second)
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	require.NoError(t, os.WriteFile("uploads", []byte("x"), 0o660))

	_, err := EnsureDir("uploads")
	require.Error(t, err)
}

func TestSaveTemp_WritesContent(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveTemp(dir, ".png", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))
	require.True(t, strings.HasSuffix(path, ".png"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "image-bytes", string(b))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestSaveTemp_CleansUpOnReadError(t *testing.T) {
	dir := t.TempDir()

	_, err := SaveTemp(dir, ".jpg", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "temp file must be removed")
}

func TestSaveTemp_MissingDir(t *testing.T) {
	_, err := SaveTemp(filepath.Join(t.TempDir(), "missing"), "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, Remove(path), "missing file is not an error")
	require.NoError(t, Remove(""))
}
