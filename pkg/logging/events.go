// pkg/logging/events.go - step events and the per-run session summary

package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// LogEvent records one step of a run, e.g. a state transition of the install.
type LogEvent struct {
	EventID   string                 `json:"event_id" yaml:"event_id"`
	SessionID string                 `json:"session_id" yaml:"session_id"`
	Timestamp time.Time              `json:"timestamp" yaml:"timestamp"`
	Level     string                 `json:"level" yaml:"level"`
	EventType string                 `json:"event_type" yaml:"event_type"` // install, wait, launch, relaunch, self_cleanup
	Action    string                 `json:"action" yaml:"action"`
	Status    string                 `json:"status" yaml:"status"` // started, completed, failed, skipped
	Message   string                 `json:"message" yaml:"message"`
	Duration  *time.Duration         `json:"duration,omitempty" yaml:"duration,omitempty"`
	Error     string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty" yaml:"context,omitempty"`
}

// SessionSummary is written to session.yaml when the run ends.
type SessionSummary struct {
	SessionID string        `yaml:"session_id"`
	Component string        `yaml:"component"`
	Version   string        `yaml:"version"`
	Hostname  string        `yaml:"hostname"`
	StartTime time.Time     `yaml:"start_time"`
	EndTime   time.Time     `yaml:"end_time"`
	Duration  time.Duration `yaml:"duration"`
	Status    string        `yaml:"status"`
	ExitCode  int           `yaml:"exit_code"`
	Events    int           `yaml:"events"`
}

// EventOption allows customizing log events
type EventOption func(*LogEvent)

// WithDuration sets the duration for the event
func WithDuration(duration time.Duration) EventOption {
	return func(e *LogEvent) {
		e.Duration = &duration
	}
}

// WithError sets the error message for the event and raises its level.
func WithError(err error) EventOption {
	return func(e *LogEvent) {
		if err != nil {
			e.Error = err.Error()
			e.Level = LevelError.String()
		}
	}
}

// WithContext adds context information to the event
func WithContext(key string, value interface{}) EventOption {
	return func(e *LogEvent) {
		if e.Context == nil {
			e.Context = make(map[string]interface{})
		}
		e.Context[key] = value
	}
}

// WithLevel sets the log level for the event
func WithLevel(level LogLevel) EventOption {
	return func(e *LogEvent) {
		e.Level = level.String()
	}
}

// Event records a step event in the current session. Before Init it is a no-op.
func Event(eventType, action, status, message string, opts ...EventOption) {
	if instance == nil {
		return
	}
	if err := instance.LogEvent(eventType, action, status, message, opts...); err != nil {
		instance.logMessage(LevelWarn, "Failed to record event", "event", eventType, "error", err)
	}
}

// LogEvent appends an event to the session's events.jsonl.
func (l *Logger) LogEvent(eventType, action, status, message string, opts ...EventOption) error {
	event := LogEvent{
		EventID:   uuid.NewString(),
		SessionID: l.config.SessionID,
		Timestamp: time.Now(),
		Level:     LevelInfo.String(),
		EventType: eventType,
		Action:    action,
		Status:    status,
		Message:   message,
	}
	for _, opt := range opts {
		opt(&event)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.eventsFile == nil {
		return fmt.Errorf("no active session for logging event")
	}
	if _, err := l.eventsFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// EndSession writes session.yaml with the final status of the run.
func EndSession(status string, exitCode int) error {
	if instance == nil {
		return nil
	}
	return instance.EndSession(status, exitCode)
}

// EndSession writes session.yaml with the final status of the run.
func (l *Logger) EndSession(status string, exitCode int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	summary := SessionSummary{
		SessionID: l.config.SessionID,
		Component: l.config.Component,
		Version:   l.version,
		Hostname:  l.hostname,
		StartTime: l.started,
		EndTime:   now,
		Duration:  now.Sub(l.started),
		Status:    status,
		ExitCode:  exitCode,
		Events:    l.countEvents(),
	}

	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal session summary: %w", err)
	}
	path := filepath.Join(l.sessionDir, "session.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session summary %s: %w", path, err)
	}
	return nil
}

func (l *Logger) countEvents() int {
	data, err := os.ReadFile(filepath.Join(l.sessionDir, "events.jsonl"))
	if err != nil {
		return 0
	}
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}
