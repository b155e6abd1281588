//go:build windows

// pkg/fileop/errno_windows.go - cross-device rename detection on Windows

package fileop

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
