//go:build !windows

// pkg/config/config_other.go - default paths on platforms without a policy store

package config

import (
	"os"
	"path/filepath"
)

func defaultLogDir() string {
	return filepath.Join(os.TempDir(), "finisher", "logs")
}

// loadPolicy is a no-op: only Windows carries a policy store.
func loadPolicy(*Configuration) error {
	return nil
}
