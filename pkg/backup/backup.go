// pkg/backup/backup.go - backup, restore and discard of an existing installation

package backup

import (
	"errors"
	"io/fs"
	"os"

	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/fileop"
	"github.com/windowsadmins/finisher/pkg/logging"
)

// Manager moves an existing installation out of the way and back again.
type Manager struct {
	tx fileop.Transaction
}

// NewManager returns a Manager performing its file operations through tx.
func NewManager(tx fileop.Transaction) *Manager {
	return &Manager{tx: tx}
}

// Backup moves existing to backupPath. With an empty backupPath the existing
// installation is deleted instead. A missing existing path is a successful
// no-op so first-time installs need no special casing.
func (m *Manager) Backup(existing, backupPath string) fileop.Result {
	if _, err := os.Lstat(existing); errors.Is(err, fs.ErrNotExist) {
		logging.Info("Nothing to back up", "path", existing)
		return fileop.Result{Success: true, Source: existing, Dest: backupPath, Noop: true}
	}

	if backupPath == "" {
		logging.Info("Removing existing installation without backup", "path", existing)
	} else {
		logging.Info("Backing up", "from", existing, "to", backupPath)
	}
	res := m.tx.Move(existing, backupPath)
	if res.NotFound() {
		return fileop.Result{Success: true, Source: existing, Dest: backupPath, Noop: true}
	}
	return res
}

// Restore deletes whatever partial content sits at existing and moves
// backupPath back into place. Failures carry exit code 50 for the cleanup
// stage and 51 for the move. With an empty backupPath only the cleanup runs.
func (m *Manager) Restore(existing, backupPath string) error {
	logging.Info("Restoring backup", "from", backupPath, "to", existing)

	if res := m.tx.Delete(existing); !res.Success && !res.NotFound() {
		return exitcode.Wrap(res.Error(), exitcode.KindTransaction, exitcode.RollbackCleanupFailed,
			"failed to remove partial installation %s", existing)
	}

	if backupPath == "" {
		logging.Warn("No backup to restore", "path", existing)
		return nil
	}

	if res := m.tx.Move(backupPath, existing); !res.Success {
		return exitcode.Wrap(res.Error(), exitcode.KindTransaction, exitcode.RollbackRestoreFailed,
			"failed to move backup %s to %s", backupPath, existing)
	}
	return nil
}

// Discard deletes the backup after a successful install. A missing backup is
// fine; any other failure is returned for the caller to report as a warning.
func (m *Manager) Discard(backupPath string) fileop.Result {
	if backupPath == "" {
		return fileop.Result{Success: true, Noop: true}
	}

	logging.Info("Cleaning up backup", "path", backupPath)
	res := m.tx.Delete(backupPath)
	if res.NotFound() {
		return fileop.Result{Success: true, Source: backupPath, Noop: true}
	}
	return res
}
