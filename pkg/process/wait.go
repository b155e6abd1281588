// pkg/process/wait.go - waiting for the predecessor process to exit

package process

import (
	"context"
	"time"

	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/logging"
)

// Waiter blocks until a process has exited.
type Waiter struct {
	// PollInterval bounds how long a single wait lasts before the context is
	// checked again.
	PollInterval time.Duration

	waitForExit func(ctx context.Context, pid int, poll time.Duration) error
}

// NewWaiter returns a Waiter using the platform's process wait.
func NewWaiter(poll time.Duration) *Waiter {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	return &Waiter{PollInterval: poll, waitForExit: waitForExit}
}

// WaitFor returns once pid has exited. Pid 0 means there is nothing to wait
// for. A process that cannot be opened is treated as already gone. There is
// no timeout; only ctx ends the wait early, which is reported as a failure.
func (w *Waiter) WaitFor(ctx context.Context, pid int) error {
	if pid == 0 {
		logging.Debug("No process to wait for")
		return nil
	}

	logging.Info("Waiting for process to exit", "pid", pid)
	start := time.Now()
	if err := w.waitForExit(ctx, pid, w.PollInterval); err != nil {
		logging.Event("wait", "wait_pid", "failed", "Error waiting for process",
			logging.WithContext("pid", pid), logging.WithError(err))
		return exitcode.Wrap(err, exitcode.KindSynchronization, exitcode.WaitFailed,
			"error waiting for process %d", pid)
	}
	logging.Event("wait", "wait_pid", "completed", "Process exited",
		logging.WithContext("pid", pid), logging.WithDuration(time.Since(start)))
	return nil
}
