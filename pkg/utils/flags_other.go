//go:build !windows

// pkg/utils/flags_other.go - argument patching stub

package utils

// PatchWindowsArgs is a no-op: os.Args already holds the exact argv.
func PatchWindowsArgs() {}
