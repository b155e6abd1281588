package fileop

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTree creates dir/a.txt and dir/sub/b.txt.
func makeTree(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o644))
}

func TestMoveDirectoryCreatesParents(t *testing.T) {
	root := t.TempDir()
	from := filepath.Join(root, "src")
	to := filepath.Join(root, "deep", "nested", "dst")
	makeTree(t, from)

	res := New().Move(from, to)

	require.True(t, res.Success, "move failed: %v", res.Err)
	assert.Equal(t, CodeOK, res.ErrorCode)
	assert.Equal(t, from, res.Source)
	assert.Equal(t, to, res.Dest)
	assert.NoDirExists(t, from)
	assert.FileExists(t, filepath.Join(to, "sub", "b.txt"))
}

func TestMoveSingleFile(t *testing.T) {
	root := t.TempDir()
	from := filepath.Join(root, "app.exe")
	require.NoError(t, os.WriteFile(from, []byte("v2"), 0o755))

	res := New().Move(from, filepath.Join(root, "bin", "app.exe"))

	require.True(t, res.Success)
	data, err := os.ReadFile(filepath.Join(root, "bin", "app.exe"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestMoveToEmptyDestinationDeletes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	makeTree(t, dir)

	res := New().Move(dir, "")

	require.True(t, res.Success)
	assert.NoDirExists(t, dir)
}

func TestMoveFailures(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing")
	makeTree(t, existing)
	other := filepath.Join(root, "other")
	makeTree(t, other)

	tests := []struct {
		name string
		from string
		to   string
		code int
	}{
		{"missing source", filepath.Join(root, "missing"), filepath.Join(root, "x"), CodeNotFound},
		{"destination exists", existing, other, CodeAlreadyExists},
		{"empty source", "", filepath.Join(root, "y"), CodeBadPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New().Move(tt.from, tt.to)
			assert.False(t, res.Success)
			assert.Equal(t, tt.code, res.ErrorCode)
			assert.Error(t, res.Error())
		})
	}
	// Nothing was merged or lost.
	assert.FileExists(t, filepath.Join(existing, "a.txt"))
	assert.FileExists(t, filepath.Join(other, "a.txt"))
}

func TestDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	makeTree(t, dir)

	res := New().Delete(dir)
	require.True(t, res.Success)
	assert.NoDirExists(t, dir)

	res = New().Delete(dir)
	assert.False(t, res.Success)
	assert.True(t, res.NotFound())
	assert.ErrorIs(t, res.Error(), fs.ErrNotExist)
}

func TestDeleteReadOnlyTree(t *testing.T) {
	if runtime.GOOS != "windows" && os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	dir := filepath.Join(t.TempDir(), "app")
	makeTree(t, dir)
	require.NoError(t, os.Chmod(filepath.Join(dir, "a.txt"), 0o444))
	require.NoError(t, os.Chmod(filepath.Join(dir, "sub"), 0o555))

	res := New().Delete(dir)

	require.True(t, res.Success, "delete failed: %v", res.Err)
	assert.NoDirExists(t, dir)
}

func TestCopyTreePreservesContent(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	makeTree(t, src)
	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink("a.txt", filepath.Join(src, "link")))
	}

	require.NoError(t, copyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
	if runtime.GOOS != "windows" {
		link, err := os.Readlink(filepath.Join(dst, "link"))
		require.NoError(t, err)
		assert.Equal(t, "a.txt", link)
	}
	assert.FileExists(t, filepath.Join(src, "a.txt"))
}

func TestCode(t *testing.T) {
	assert.Equal(t, CodeOK, Code(nil))
	assert.Equal(t, CodeFailed, Code(errors.New("opaque")))
	assert.Equal(t, CodeAccessDenied, Code(&fs.PathError{Op: "open", Path: "x", Err: fs.ErrPermission}))
	assert.Equal(t, CodeAlreadyExists, Code(fs.ErrExist))
}
