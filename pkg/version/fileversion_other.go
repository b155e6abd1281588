//go:build !windows

// pkg/version/fileversion_other.go - file version lookup without PE resources

package version

import "errors"

func executableVersion(string) (string, error) {
	return "", errors.New("version resources are only available on Windows")
}
