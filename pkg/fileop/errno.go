// pkg/fileop/errno.go - error code classification for file operation results

package fileop

import (
	"errors"
	"io/fs"
	"syscall"
)

// Error codes reported in Result.ErrorCode. They follow the Windows system
// error numbers so both platforms report the same values for common failures.
const (
	CodeOK            = 0
	CodeFailed        = 1
	CodeNotFound      = 2
	CodeAccessDenied  = 5
	CodeBadPath       = 161
	CodeAlreadyExists = 183
)

var errEmptyPath = errors.New("empty path")

// Code classifies err into a Result error code.
func Code(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, errEmptyPath):
		return CodeBadPath
	case errors.Is(err, fs.ErrNotExist):
		return CodeNotFound
	case errors.Is(err, fs.ErrPermission):
		return CodeAccessDenied
	case errors.Is(err, fs.ErrExist):
		return CodeAlreadyExists
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return int(errno)
	}
	return CodeFailed
}
