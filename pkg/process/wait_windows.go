//go:build windows

// pkg/process/wait_windows.go - waiting on a process handle

package process

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/windows"

	"github.com/windowsadmins/finisher/pkg/logging"
)

const waitTimeout = 0x00000102

func waitForExit(ctx context.Context, pid int, poll time.Duration) error {
	h, err := windows.OpenProcess(windows.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		logging.Debug("Cannot open process, assuming it has exited", "pid", pid, "error", err)
		return nil
	}
	defer windows.CloseHandle(h)

	return waitHandle(ctx, h, poll)
}

// waitHandle waits for a process handle to become signaled.
func waitHandle(ctx context.Context, h windows.Handle, poll time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := windows.WaitForSingleObject(h, uint32(poll/time.Millisecond))
		switch {
		case err != nil:
			return fmt.Errorf("WaitForSingleObject: %w", err)
		case ev == windows.WAIT_OBJECT_0:
			return nil
		case ev == waitTimeout:
			continue
		default:
			return fmt.Errorf("WaitForSingleObject returned 0x%x", ev)
		}
	}
}
