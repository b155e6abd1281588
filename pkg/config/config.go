// pkg/config/config.go - configuration settings for the installation finisher.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up beside the running executable.
const FileName = "finisher.yaml"

// EnvConfigPath overrides the configuration file location.
const EnvConfigPath = "FINISHER_CONFIG"

// Configuration holds the configurable options for do_install and instmanager in YAML format
type Configuration struct {
	LogDir           string `yaml:"LogDir"`
	LogLevel         string `yaml:"LogLevel"`
	LogMaxSizeMB     int    `yaml:"LogMaxSizeMB"`
	LogMaxBackups    int    `yaml:"LogMaxBackups"`
	LogRetentionDays int    `yaml:"LogRetentionDays"`

	// Pause after waiting for the predecessor so it can release file handles.
	SettleDelay time.Duration `yaml:"SettleDelay"`
	// Delay before the detached command removes the helper's temp directory.
	SelfDeleteDelay time.Duration `yaml:"SelfDeleteDelay"`
	// Poll interval for process waits on platforms without waitable handles.
	PollInterval time.Duration `yaml:"PollInterval"`

	InstallerBinary          string `yaml:"InstallerBinary"`
	PauseOnFailure           bool   `yaml:"PauseOnFailure"`
	RelaunchOnInstallFailure bool   `yaml:"RelaunchOnInstallFailure"`
	MaxArgLength             int    `yaml:"MaxArgLength"`
	ResultDir                string `yaml:"ResultDir"`
	VersionFile              string `yaml:"VersionFile"` // relative to the install target
	Verbose                  bool   `yaml:"Verbose"`

	// Path the configuration was read from, empty for defaults.
	Source string `yaml:"-"`
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		LogDir:                   defaultLogDir(),
		LogLevel:                 "INFO",
		LogMaxSizeMB:             10,
		LogMaxBackups:            5,
		LogRetentionDays:         30,
		SettleDelay:              time.Second,
		SelfDeleteDelay:          2 * time.Second,
		PollInterval:             250 * time.Millisecond,
		InstallerBinary:          "do_install",
		PauseOnFailure:           true,
		RelaunchOnInstallFailure: true,
		MaxArgLength:             32767,
	}
}

// LoadConfig loads the configuration from a YAML file.
//
// An explicit path must exist. Without one the FINISHER_CONFIG environment
// variable and then finisher.yaml beside the executable are tried; when
// neither exists the registry policy (Windows) or the defaults are used.
func LoadConfig(path string) (*Configuration, error) {
	if path != "" {
		return loadFile(path)
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return loadFile(env)
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), FileName)
		cfg, err := loadFile(candidate)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := GetDefaultConfig()
	if err := loadPolicy(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func loadFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}
	cfg.Source = path
	return cfg, cfg.Validate()
}

// Validate rejects values the helpers cannot run with.
func (c *Configuration) Validate() error {
	switch strings.ToUpper(c.LogLevel) {
	case "ERROR", "WARN", "WARNING", "INFO", "DEBUG":
	default:
		return fmt.Errorf("invalid LogLevel %q", c.LogLevel)
	}
	if c.InstallerBinary == "" || strings.ContainsAny(c.InstallerBinary, `/\`) {
		return fmt.Errorf("InstallerBinary must be a bare file name, got %q", c.InstallerBinary)
	}
	if c.SettleDelay < 0 || c.SelfDeleteDelay < 0 || c.PollInterval < 0 {
		return errors.New("delays must not be negative")
	}
	if c.MaxArgLength <= 0 {
		return fmt.Errorf("MaxArgLength must be positive, got %d", c.MaxArgLength)
	}
	if filepath.IsAbs(c.VersionFile) {
		return fmt.Errorf("VersionFile must be relative to the install target, got %q", c.VersionFile)
	}
	return nil
}
