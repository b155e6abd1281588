//go:build !windows

// pkg/process/wait_other.go - pid polling with gopsutil

package process

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/windowsadmins/finisher/pkg/logging"
)

// waitForExit polls for pid until it disappears. Errors from the process
// table are treated like a missing process.
func waitForExit(ctx context.Context, pid int, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		exists, err := process.PidExistsWithContext(ctx, int32(pid))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logging.Debug("Cannot query process, assuming it has exited", "pid", pid, "error", err)
			return nil
		}
		if !exists {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
