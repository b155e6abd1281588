// pkg/status/result.go - result file handed to the relaunched application

package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/windowsadmins/finisher/pkg/logging"
)

const resultFile = "result.json"

// Result summarizes one instmanager run.
type Result struct {
	Success     bool      `json:"success"`
	ExitCode    int       `json:"exit_code"`
	InstallCode int       `json:"install_code"`
	Relaunched  bool      `json:"relaunched"`
	Error       string    `json:"error,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	SessionDir  string    `json:"session_dir,omitempty"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// ResultHandler reads and writes result.json in one directory.
type ResultHandler struct {
	resultFile string
}

// NewResultHandler returns a handler for result.json inside dir.
func NewResultHandler(dir string) *ResultHandler {
	return &ResultHandler{resultFile: filepath.Join(dir, resultFile)}
}

// Path returns the result file location.
func (rh *ResultHandler) Path() string {
	return rh.resultFile
}

// Write stores result atomically: readers see the old file or the new one.
func (rh *ResultHandler) Write(result Result) error {
	logging.Info("Writing result file", "path", rh.resultFile)

	dir := filepath.Dir(rh.resultFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	tmpPath := rh.resultFile + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp result file: %w", err)
	}
	if err := os.Rename(tmpPath, rh.resultFile); err != nil {
		if cleanupErr := os.Remove(tmpPath); cleanupErr != nil {
			logging.Warn("Failed to remove temp result file", "error", cleanupErr)
		}
		return err
	}
	return nil
}

// Read returns the stored result.
func (rh *ResultHandler) Read() (Result, error) {
	data, err := os.ReadFile(rh.resultFile)
	if err != nil {
		return Result{}, err
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("invalid result format: %w", err)
	}
	return result, nil
}

// Watch blocks until a result is available and returns it, removing the
// file afterwards. The directory must exist or appear before ctx ends.
func (rh *ResultHandler) Watch(ctx context.Context) (Result, error) {
	defer func() {
		if err := rh.Cleanup(); err != nil {
			logging.Warn("Failed to clean up result file", "error", err)
		}
	}()

	if result, err := rh.Read(); err == nil {
		return result, nil
	}

	dir := filepath.Dir(rh.resultFile)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			break
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ticker.C:
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Warn("Failed to close watcher", "error", err)
		}
	}()

	// Watch the directory; the file itself may not exist yet.
	if err := watcher.Add(dir); err != nil {
		return Result{}, fmt.Errorf("failed to watch directory: %w", err)
	}

	// The writer may have finished between the first read and Add.
	if result, err := rh.Read(); err == nil {
		return result, nil
	}

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return Result{}, errors.New("watcher closed unexpectedly")
			}
			if filepath.Clean(event.Name) != rh.resultFile {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				result, err := rh.Read()
				if err != nil {
					logging.Debug("Result not readable yet", "error", err)
					continue
				}
				return result, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return Result{}, errors.New("watcher closed unexpectedly")
			}
			return Result{}, fmt.Errorf("watcher error: %w", err)
		}
	}
}

// Cleanup removes the result file if it exists.
func (rh *ResultHandler) Cleanup() error {
	err := os.Remove(rh.resultFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
