// pkg/logging/logging.go - logging for the installation finisher.
//
// Plain text lines go to the console (stderr) and to a rotating
// <component>.log in the log directory. Each run also gets a timestamped
// session directory holding structured JSON and YAML copies of every entry
// plus the step events emitted by the install orchestrator.

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/windowsadmins/finisher/pkg/config"
	"github.com/windowsadmins/finisher/pkg/version"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configuration value to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// sessionDirLayout prefixes every session directory name.
const sessionDirLayout = "2006-01-02-150405"

// LogEntry is the structured form of one log line.
type LogEntry struct {
	Time       int64                  `json:"time" yaml:"time"`
	Timestamp  string                 `json:"timestamp" yaml:"timestamp"`
	Level      string                 `json:"level" yaml:"level"`
	Message    string                 `json:"message" yaml:"message"`
	Component  string                 `json:"component" yaml:"component"`
	PID        int64                  `json:"pid" yaml:"pid"`
	Hostname   string                 `json:"hostname" yaml:"hostname"`
	Version    string                 `json:"version" yaml:"version"`
	SessionID  string                 `json:"session_id" yaml:"session_id"`
	Properties map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// RetentionPolicy defines log retention rules
type RetentionPolicy struct {
	MaxSessions int // Keep the newest N session directories
	MaxAgeDays  int // Delete session directories older than this
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	BaseDir    string
	Component  string // do_install or instmanager
	SessionID  string
	Level      LogLevel
	Retention  RetentionPolicy
	MaxSizeMB  int // rotation threshold for <component>.log
	MaxBackups int
	EnableJSON bool
	EnableYAML bool
	Console    io.Writer // nil disables console output
}

// Logger writes plain, JSON and YAML log output for one process run.
type Logger struct {
	mu         sync.Mutex
	logger     *log.Logger
	logLevel   LogLevel
	rotator    *lumberjack.Logger
	jsonFile   *os.File
	yamlFile   *os.File
	eventsFile *os.File
	config     LoggerConfig
	started    time.Time
	sessionDir string
	hostname   string
	version    string
}

var (
	instance *Logger
	once     sync.Once

	// fallback serves package-level calls made before Init, e.g. from tests.
	fallback = &Logger{logger: log.New(os.Stderr, "", 0), logLevel: LevelInfo}
)

// DefaultRetentionPolicy returns the retention defaults.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		MaxSessions: 50,
		MaxAgeDays:  30,
	}
}

// Init initializes the singleton Logger for component from the configuration.
// It must be called before any logging functions are used.
func Init(cfg *config.Configuration, component string) error {
	retention := DefaultRetentionPolicy()
	if cfg.LogRetentionDays > 0 {
		retention.MaxAgeDays = cfg.LogRetentionDays
	}
	level := ParseLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = LevelDebug
	}
	return InitWithConfig(LoggerConfig{
		BaseDir:    cfg.LogDir,
		Component:  component,
		SessionID:  uuid.NewString(),
		Level:      level,
		Retention:  retention,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		EnableJSON: true,
		EnableYAML: true,
		Console:    os.Stderr,
	})
}

// InitWithConfig initializes the logger with explicit LoggerConfig
func InitWithConfig(logCfg LoggerConfig) error {
	var initErr error
	once.Do(func() {
		instance, initErr = newLoggerWithConfig(logCfg)
	})
	return initErr
}

func newLoggerWithConfig(cfg LoggerConfig) (*Logger, error) {
	started := time.Now()
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.Component == "" {
		cfg.Component = "finisher"
	}

	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base log directory: %w", err)
	}

	sessionDir := filepath.Join(cfg.BaseDir, "sessions",
		started.Format(sessionDirLayout)+"-"+cfg.Component)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session log directory %s: %w", sessionDir, err)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	l := &Logger{
		logLevel:   cfg.Level,
		config:     cfg,
		started:    started,
		sessionDir: sessionDir,
		hostname:   hostname,
		version:    version.Version().Version,
		rotator: &lumberjack.Logger{
			Filename:   filepath.Join(cfg.BaseDir, cfg.Component+".log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.Retention.MaxAgeDays,
		},
	}

	if err := l.openSessionFiles(); err != nil {
		l.close()
		return nil, err
	}

	var out io.Writer = l.rotator
	if cfg.Console != nil {
		out = io.MultiWriter(cfg.Console, l.rotator)
	}
	l.logger = log.New(out, "", 0)

	l.performCleanup()
	return l, nil
}

func (l *Logger) openSessionFiles() error {
	var err error
	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(l.sessionDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}

	if l.config.EnableJSON {
		if l.jsonFile, err = open("log.jsonl"); err != nil {
			return fmt.Errorf("failed to open JSON log file: %w", err)
		}
	}
	if l.config.EnableYAML {
		if l.yamlFile, err = open("log.yaml"); err != nil {
			return fmt.Errorf("failed to open YAML log file: %w", err)
		}
	}
	if l.eventsFile, err = open("events.jsonl"); err != nil {
		return fmt.Errorf("failed to open events file: %w", err)
	}
	return nil
}

// performCleanup removes session directories outside the retention policy.
// The current session is never removed.
func (l *Logger) performCleanup() {
	root := filepath.Join(l.config.BaseDir, "sessions")
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}

	type sessionDir struct {
		name    string
		started time.Time
	}
	var dirs []sessionDir
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || len(name) < len(sessionDirLayout) {
			continue
		}
		ts, err := time.ParseInLocation(sessionDirLayout, name[:len(sessionDirLayout)], time.Local)
		if err != nil {
			continue
		}
		dirs = append(dirs, sessionDir{name: name, started: ts})
	}

	sort.Slice(dirs, func(i, j int) bool {
		return dirs[i].started.After(dirs[j].started)
	})

	retention := l.config.Retention
	maxAge := time.Duration(retention.MaxAgeDays) * 24 * time.Hour
	current := filepath.Base(l.sessionDir)
	for i, dir := range dirs {
		if dir.name == current {
			continue
		}
		tooMany := retention.MaxSessions > 0 && i >= retention.MaxSessions
		tooOld := retention.MaxAgeDays > 0 && l.started.Sub(dir.started) > maxAge
		if tooMany || tooOld {
			_ = os.RemoveAll(filepath.Join(root, dir.name))
		}
	}
}

func (l *Logger) createLogEntry(level LogLevel, message string, properties map[string]interface{}) LogEntry {
	now := time.Now()
	return LogEntry{
		Time:       now.Unix(),
		Timestamp:  now.Format(time.RFC3339),
		Level:      level.String(),
		Message:    message,
		Component:  l.config.Component,
		PID:        int64(os.Getpid()),
		Hostname:   l.hostname,
		Version:    l.version,
		SessionID:  l.config.SessionID,
		Properties: properties,
	}
}

// CloseLogger flushes and closes all log files if they're open.
func CloseLogger() {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	defer instance.mu.Unlock()
	instance.close()
}

func (l *Logger) close() {
	for _, f := range []**os.File{&l.jsonFile, &l.yamlFile, &l.eventsFile} {
		if *f != nil {
			if err := (*f).Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
			}
			*f = nil
		}
	}
	if l.rotator != nil {
		_ = l.rotator.Close()
	}
}

// logMessage is the core logging method that writes to all configured outputs
func (l *Logger) logMessage(level LogLevel, message string, keyValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.logLevel {
		return
	}

	properties := make(map[string]interface{}, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		properties[fmt.Sprintf("%v", keyValues[i])] = propertyValue(keyValues[i+1])
	}

	entry := l.createLogEntry(level, message, properties)
	l.writeMainLog(entry, keyValues)

	if l.jsonFile != nil {
		if data, err := json.Marshal(entry); err == nil {
			_, _ = l.jsonFile.Write(append(data, '\n'))
		}
	}
	if l.yamlFile != nil {
		if data, err := yaml.Marshal(entry); err == nil {
			_, _ = l.yamlFile.WriteString("---\n" + string(data))
		}
	}
}

// propertyValue flattens errors and stringers so every property marshals.
func propertyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	}
	return v
}

// writeMainLog writes one plain text line.
func (l *Logger) writeMainLog(entry LogEntry, keyValues []interface{}) {
	ts := time.Unix(entry.Time, 0).Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %-5s %s", ts, entry.Level, entry.Message)

	if len(keyValues)/2 > 4 {
		for i := 0; i+1 < len(keyValues); i += 2 {
			line += fmt.Sprintf("\n        %v: %v", keyValues[i], keyValues[i+1])
		}
	} else {
		for i := 0; i+1 < len(keyValues); i += 2 {
			line += fmt.Sprintf(" %v=%v", keyValues[i], keyValues[i+1])
		}
	}

	if entry.Level == "ERROR" {
		line = "----------------------------------------\n" + line
	}

	l.logger.Println(line)
}

func current() *Logger {
	if instance == nil {
		return fallback
	}
	return instance
}

// Info logs informational messages.
func Info(message string, keyValues ...interface{}) {
	current().logMessage(LevelInfo, message, keyValues...)
}

// Debug logs debug messages.
func Debug(message string, keyValues ...interface{}) {
	current().logMessage(LevelDebug, message, keyValues...)
}

// Warn logs warning messages.
func Warn(message string, keyValues ...interface{}) {
	current().logMessage(LevelWarn, message, keyValues...)
}

// Error logs error messages.
func Error(message string, keyValues ...interface{}) {
	current().logMessage(LevelError, message, keyValues...)
}

// GetSessionDir returns the current session directory, empty before Init.
func GetSessionDir() string {
	if instance == nil {
		return ""
	}
	return instance.sessionDir
}

// GetSessionID returns the current session identifier, empty before Init.
func GetSessionID() string {
	if instance == nil {
		return ""
	}
	return instance.config.SessionID
}
