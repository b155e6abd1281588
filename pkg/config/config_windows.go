//go:build windows

// pkg/config/config_windows.go - registry policy and default paths on Windows

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/windows/registry"
)

// PolicyRegistryPath holds policy-managed settings used when no YAML file exists.
const PolicyRegistryPath = `SOFTWARE\Finisher\Config`

func defaultLogDir() string {
	programData := os.Getenv("ProgramData")
	if programData == "" {
		programData = `C:\ProgramData`
	}
	return filepath.Join(programData, "Finisher", "logs")
}

// loadPolicy overlays registry values on cfg. A missing key is not an error.
func loadPolicy(cfg *Configuration) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, PolicyRegistryPath, registry.READ)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open policy registry key %s: %w", PolicyRegistryPath, err)
	}
	defer key.Close()

	loadStringFromRegistry(key, "LogDir", &cfg.LogDir)
	loadStringFromRegistry(key, "LogLevel", &cfg.LogLevel)
	loadStringFromRegistry(key, "InstallerBinary", &cfg.InstallerBinary)
	loadStringFromRegistry(key, "ResultDir", &cfg.ResultDir)
	loadStringFromRegistry(key, "VersionFile", &cfg.VersionFile)

	loadIntFromRegistry(key, "LogMaxSizeMB", &cfg.LogMaxSizeMB)
	loadIntFromRegistry(key, "LogMaxBackups", &cfg.LogMaxBackups)
	loadIntFromRegistry(key, "LogRetentionDays", &cfg.LogRetentionDays)
	loadIntFromRegistry(key, "MaxArgLength", &cfg.MaxArgLength)

	loadDurationFromRegistry(key, "SettleDelay", &cfg.SettleDelay)
	loadDurationFromRegistry(key, "SelfDeleteDelay", &cfg.SelfDeleteDelay)

	loadBoolFromRegistry(key, "PauseOnFailure", &cfg.PauseOnFailure)
	loadBoolFromRegistry(key, "RelaunchOnInstallFailure", &cfg.RelaunchOnInstallFailure)
	loadBoolFromRegistry(key, "Verbose", &cfg.Verbose)

	cfg.Source = `HKLM\` + PolicyRegistryPath
	return nil
}

func loadStringFromRegistry(key registry.Key, valueName string, target *string) {
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		*target = val
		log.Printf("Policy: Loaded %s = %s", valueName, val)
	}
}

// loadBoolFromRegistry accepts "true"/"false", "1"/"0" strings or a DWORD.
func loadBoolFromRegistry(key registry.Key, valueName string, target *bool) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.ParseBool(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = val != 0
	}
}

func loadIntFromRegistry(key registry.Key, valueName string, target *int) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = int(val)
	}
}

// loadDurationFromRegistry reads a Go duration string or a DWORD in milliseconds.
func loadDurationFromRegistry(key registry.Key, valueName string, target *time.Duration) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := time.ParseDuration(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = time.Duration(val) * time.Millisecond
	}
}
