//go:build !windows

// pkg/fileop/errno_other.go - cross-device rename detection on Unix

package fileop

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
