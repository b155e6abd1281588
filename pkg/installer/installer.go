// pkg/installer/installer.go - the backup, install and cleanup transaction run by do_install.

package installer

import (
	"time"

	"github.com/windowsadmins/finisher/pkg/backup"
	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/extract"
	"github.com/windowsadmins/finisher/pkg/fileop"
	"github.com/windowsadmins/finisher/pkg/logging"
)

// Outcome is the result of one Run.
type Outcome struct {
	State State
	Code  int
	Err   error
	// Warnings holds failures that did not change the exit code.
	Warnings []error
	// Transitions lists every state entered, starting with StateStart.
	Transitions []State
}

// Verifier checks the installed tree after the move. A non-nil error fails
// the install step and triggers a rollback.
type Verifier interface {
	Verify(req Request) error
}

// Orchestrator sequences backup, install, cleanup and rollback.
type Orchestrator struct {
	tx       fileop.Transaction
	backups  *backup.Manager
	cleaner  *extract.Cleaner
	verifier Verifier
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithVerifier runs v after the install move.
func WithVerifier(v Verifier) Option {
	return func(o *Orchestrator) {
		o.verifier = v
	}
}

// New returns an Orchestrator performing all file operations through tx.
func New(tx fileop.Transaction, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tx:      tx,
		backups: backup.NewManager(tx),
		cleaner: extract.NewCleaner(tx),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run holds the per-Run bookkeeping.
type run struct {
	req       Request
	outcome   Outcome
	cleanedUp bool
	stepStart time.Time
}

func (r *run) enter(s State) {
	if len(r.outcome.Transitions) > 0 {
		prev := r.outcome.Transitions[len(r.outcome.Transitions)-1]
		logging.Event("install", prev.String(), "completed", "Leaving "+prev.String(),
			logging.WithDuration(time.Since(r.stepStart)))
	}
	r.stepStart = time.Now()
	r.outcome.State = s
	r.outcome.Transitions = append(r.outcome.Transitions, s)
	logging.Debug("Install state", "state", s)
	if !s.Terminal() {
		logging.Event("install", s.String(), "started", "Entering "+s.String())
	}
}

func (r *run) finish(s State, code int, err error) Outcome {
	r.enter(s)
	r.outcome.Code = code
	r.outcome.Err = err
	status := "completed"
	opts := []logging.EventOption{logging.WithContext("exit_code", code)}
	if err != nil {
		status = "failed"
		opts = append(opts, logging.WithError(err))
	}
	logging.Event("install", s.String(), status, "Install finished", opts...)
	return r.outcome
}

func (r *run) warn(err error) {
	r.outcome.Warnings = append(r.outcome.Warnings, err)
}

// Run executes the transaction for req. The request is assumed valid; see
// Request.Validate.
func (o *Orchestrator) Run(req Request) Outcome {
	r := &run{req: req}
	r.enter(StateStart)

	r.enter(StateBackingUp)
	res := o.backups.Backup(req.BackupWhat, req.BackupName)
	if !res.Success {
		err := exitcode.Wrap(res.Error(), exitcode.KindTransaction, exitcode.BackupFailed,
			"error backing up %s to %s", req.BackupWhat, req.BackupName)
		logging.Error("Backup failed", "from", req.BackupWhat, "to", req.BackupName, "code", res.ErrorCode, "error", res.Err)
		// The extraction directory is stale either way.
		o.bestEffortCleanup(r)
		return r.finish(StateFailedBackup, exitcode.BackupFailed, err)
	}

	// A backup that found nothing to move leaves nothing to restore or discard.
	backedUp := req.BackupName
	if res.Noop {
		backedUp = ""
	}

	r.enter(StateInstalling)
	logging.Info("Renaming", "from", req.MoveFrom, "to", req.MoveTo)
	installErr := o.install(req)
	if installErr != nil {
		logging.Error("Install failed", "from", req.MoveFrom, "to", req.MoveTo, "error", installErr)

		r.enter(StateRollingBack)
		o.bestEffortCleanup(r)
		if err := o.backups.Restore(req.BackupWhat, backedUp); err != nil {
			logging.Error("Rollback failed", "backup", backedUp, "target", req.BackupWhat, "error", err)
			return r.finish(StateFailedRollbackFailed, exitcode.Of(err), err)
		}
		return r.finish(StateFailedRolledBack, exitcode.InstallFailed, installErr)
	}

	r.enter(StateCleaningUp)
	if res := o.cleanupOnce(r); !res.Success {
		err := exitcode.Wrap(res.Error(), exitcode.KindTransaction, exitcode.CleanupFailed,
			"error cleaning up extraction directory of %s", req.MoveFrom)
		logging.Error("Cleanup failed", "path", res.Source, "code", res.ErrorCode)
		return r.finish(StateFailedCleanup, exitcode.CleanupFailed, err)
	}

	if res := o.backups.Discard(backedUp); !res.Success {
		err := exitcode.Wrap(res.Error(), exitcode.KindCleanupWarning, exitcode.OK,
			"error cleaning up backup %s", backedUp)
		logging.Warn("Error cleaning up backup", "path", backedUp, "code", res.ErrorCode)
		r.warn(err)
	}

	logging.Info("done.")
	return r.finish(StateDone, exitcode.OK, nil)
}

// install moves the new files into place and verifies them.
func (o *Orchestrator) install(req Request) error {
	res := o.tx.Move(req.MoveFrom, req.MoveTo)
	if !res.Success {
		return exitcode.Wrap(res.Error(), exitcode.KindTransaction, exitcode.InstallFailed,
			"error renaming %s to %s", req.MoveFrom, req.MoveTo)
	}
	if o.verifier != nil {
		if err := o.verifier.Verify(req); err != nil {
			return exitcode.Wrap(err, exitcode.KindTransaction, exitcode.InstallFailed,
				"installed files at %s failed verification", req.MoveTo)
		}
	}
	return nil
}

// cleanupOnce deletes the extraction directory the first time it is called
// for a run and reports a no-op success afterwards.
func (o *Orchestrator) cleanupOnce(r *run) fileop.Result {
	if r.cleanedUp {
		return fileop.Result{Success: true, Noop: true}
	}
	r.cleanedUp = true
	return o.cleaner.Cleanup(r.req.MoveFrom)
}

// bestEffortCleanup runs cleanupOnce on a failure path, where a leftover
// extraction directory is only worth a warning.
func (o *Orchestrator) bestEffortCleanup(r *run) {
	if res := o.cleanupOnce(r); !res.Success {
		logging.Warn("Could not remove extraction directory", "path", res.Source, "code", res.ErrorCode)
		r.warn(exitcode.Wrap(res.Error(), exitcode.KindCleanupWarning, exitcode.OK,
			"error cleaning up %s", res.Source))
	}
}
