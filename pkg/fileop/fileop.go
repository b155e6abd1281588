// pkg/fileop/fileop.go - recursive move and delete with a single result per operation.

package fileop

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/windowsadmins/finisher/pkg/logging"
)

// Result reports the outcome of one Move or Delete.
type Result struct {
	Success   bool
	ErrorCode int
	Source    string
	Dest      string
	Err       error
	// Noop is set when the operation succeeded without touching the filesystem.
	Noop bool
}

// Error returns nil for a successful result.
func (r Result) Error() error {
	if r.Success {
		return nil
	}
	if r.Err != nil {
		return r.Err
	}
	return fmt.Errorf("file operation on %s failed with code %d", r.Source, r.ErrorCode)
}

// NotFound reports whether the operation failed because its source was missing.
func (r Result) NotFound() bool {
	return !r.Success && r.ErrorCode == CodeNotFound
}

// Transaction moves or deletes whole file trees.
type Transaction interface {
	Move(from, to string) Result
	Delete(path string) Result
}

// FS implements Transaction on the local filesystem.
type FS struct{}

// New returns a Transaction on the local filesystem.
func New() *FS {
	return &FS{}
}

func ok(from, to string) Result {
	return Result{Success: true, Source: from, Dest: to}
}

func failed(from, to string, err error) Result {
	return Result{Source: from, Dest: to, ErrorCode: Code(err), Err: err}
}

// Move relocates from to to, recursively for directories. Missing parents of
// to are created. An empty to deletes from. The destination must not exist.
func (f *FS) Move(from, to string) Result {
	if to == "" {
		return f.Delete(from)
	}
	if from == "" {
		return failed(from, to, fmt.Errorf("move: %w", errEmptyPath))
	}

	logging.Debug("Moving", "from", from, "to", to)

	if _, err := os.Lstat(from); err != nil {
		return failed(from, to, fmt.Errorf("move %s: %w", from, err))
	}
	if _, err := os.Lstat(to); err == nil {
		return failed(from, to, fmt.Errorf("move %s to %s: %w", from, to, fs.ErrExist))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return failed(from, to, fmt.Errorf("move %s to %s: %w", from, to, err))
	}
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return failed(from, to, fmt.Errorf("create parent of %s: %w", to, err))
	}

	err := os.Rename(from, to)
	if err == nil {
		return ok(from, to)
	}
	if !isCrossDevice(err) {
		return failed(from, to, fmt.Errorf("move %s to %s: %w", from, to, err))
	}

	logging.Debug("Rename crossed devices, copying instead", "from", from, "to", to)
	if err := copyTree(from, to); err != nil {
		var result *multierror.Error
		result = multierror.Append(result, fmt.Errorf("copy %s to %s: %w", from, to, err))
		if rmErr := os.RemoveAll(to); rmErr != nil {
			result = multierror.Append(result, fmt.Errorf("remove partial copy %s: %w", to, rmErr))
		}
		return failed(from, to, result.ErrorOrNil())
	}
	if err := removeTree(from); err != nil {
		return failed(from, to, fmt.Errorf("remove %s after copy: %w", from, err))
	}
	return ok(from, to)
}

// Delete removes path recursively. A missing path fails with CodeNotFound;
// callers decide whether that is acceptable.
func (f *FS) Delete(path string) Result {
	if path == "" {
		return failed(path, "", fmt.Errorf("delete: %w", errEmptyPath))
	}

	logging.Debug("Deleting", "path", path)

	if _, err := os.Lstat(path); err != nil {
		return failed(path, "", fmt.Errorf("delete %s: %w", path, err))
	}
	if err := removeTree(path); err != nil {
		return failed(path, "", fmt.Errorf("delete %s: %w", path, err))
	}
	return ok(path, "")
}

// removeTree deletes path. Read-only entries are made writable and the
// removal is repeated once.
func removeTree(path string) error {
	err := os.RemoveAll(path)
	if err == nil || !errors.Is(err, fs.ErrPermission) {
		return err
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr == nil && d.Type()&fs.ModeSymlink == 0 {
			mode := os.FileMode(0o600)
			if d.IsDir() {
				mode = 0o700
			}
			_ = os.Chmod(p, mode)
		}
		return nil
	})
	return os.RemoveAll(path)
}
