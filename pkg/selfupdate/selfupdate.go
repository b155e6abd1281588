// pkg/selfupdate/selfupdate.go - instmanager: wait, install with privileges, relaunch, self-delete

package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/windowsadmins/finisher/pkg/config"
	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/installer"
	"github.com/windowsadmins/finisher/pkg/logging"
	"github.com/windowsadmins/finisher/pkg/process"
	"github.com/windowsadmins/finisher/pkg/status"
)

// Waiter blocks until a process has exited.
type Waiter interface {
	WaitFor(ctx context.Context, pid int) error
}

// SelfCleaner removes the helper's own temporary directory.
type SelfCleaner interface {
	ScheduleSelfDelete(dir string) error
}

// Manager runs the instmanager sequence.
type Manager struct {
	cfg           *config.Configuration
	installerPath string
	waiter        Waiter
	runner        process.Runner
	opener        process.Opener
	cleaner       SelfCleaner
	results       *status.ResultHandler
	sleep         func(time.Duration)
}

// Option configures a Manager.
type Option func(*Manager)

// WithWaiter replaces the process waiter.
func WithWaiter(w Waiter) Option { return func(m *Manager) { m.waiter = w } }

// WithRunner replaces the installer runner.
func WithRunner(r process.Runner) Option { return func(m *Manager) { m.runner = r } }

// WithOpener replaces the relaunch opener.
func WithOpener(o process.Opener) Option { return func(m *Manager) { m.opener = o } }

// WithSelfCleaner replaces the self-delete step.
func WithSelfCleaner(c SelfCleaner) Option { return func(m *Manager) { m.cleaner = c } }

// WithResultDir writes result.json into dir at the end of the run.
func WithResultDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.results = status.NewResultHandler(dir)
		}
	}
}

// WithSleep replaces the settle delay sleep.
func WithSleep(sleep func(time.Duration)) Option { return func(m *Manager) { m.sleep = sleep } }

// NewManager returns a Manager that runs installerPath as do_install.
func NewManager(cfg *config.Configuration, installerPath string, opts ...Option) *Manager {
	m := &Manager{
		cfg:           cfg,
		installerPath: installerPath,
		waiter:        process.NewWaiter(cfg.PollInterval),
		runner:        process.NewRunner(),
		opener:        process.NewOpener(),
		cleaner:       NewSelfDeleter(cfg.SelfDeleteDelay),
		sleep:         time.Sleep,
	}
	if cfg.ResultDir != "" {
		m.results = status.NewResultHandler(cfg.ResultDir)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InstallerPath returns the do_install executable that sits next to the
// running executable.
func InstallerPath(cfg *config.Configuration) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("can't locate own executable: %w", err)
	}
	name := cfg.InstallerBinary
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(exe), name), nil
}

// Run performs the whole sequence and returns the exit code. Self cleanup
// always runs last; its failure turns an otherwise successful run into 3.
func (m *Manager) Run(ctx context.Context, req installer.Request) int {
	result := status.Result{
		InstallCode: -1,
		SessionID:   logging.GetSessionID(),
		SessionDir:  logging.GetSessionDir(),
	}
	err := m.run(ctx, req, &result)
	code := exitcode.Of(err)
	if err != nil {
		logging.Error("instmanager failed", "code", code, "error", err)
		result.Error = err.Error()
	}

	result.ExitCode = code
	result.Success = err == nil && result.InstallCode == 0
	result.ExecutedAt = time.Now()
	if m.results != nil {
		if werr := m.results.Write(result); werr != nil {
			logging.Warn("Failed to write result file", "path", m.results.Path(), "error", werr)
		}
	}

	return m.cleanupSelf(req.SelfTempDir, code)
}

// RunArgs parses instmanager's positional arguments and runs the sequence.
// Arguments that fail to parse or validate still get self cleanup whenever
// they name a self temp dir.
func (m *Manager) RunArgs(ctx context.Context, args []string, expectVersion string) int {
	req, err := installer.ParseManagerArgs(args)
	if err == nil {
		req.ExpectVersion = expectVersion
		err = req.Validate(m.cfg.MaxArgLength)
	}
	if err == nil {
		return m.Run(ctx, req)
	}

	code := exitcode.Of(err)
	logging.Error("Invalid arguments", "code", code, "error", err)
	if len(args) != installer.ManagerArgCount {
		return code
	}
	selfDir := args[6]
	if len(selfDir) > m.cfg.MaxArgLength {
		logging.Warn("Self temp dir argument too long, leaving it", "length", len(selfDir))
		return code
	}
	return m.cleanupSelf(selfDir, code)
}

// cleanupSelf schedules removal of dir and returns the final exit code: a
// failure turns OK into 3 and leaves any other code alone.
func (m *Manager) cleanupSelf(dir string, code int) int {
	logging.Info("Autodestructing", "path", dir)
	if err := m.cleaner.ScheduleSelfDelete(dir); err != nil {
		logging.Error("Self cleanup failed", "path", dir, "error", err)
		logging.Event("self_cleanup", "schedule", "failed", "Self cleanup failed", logging.WithError(err))
		if code == exitcode.OK {
			code = exitcode.SelfDeleteFailed
		}
	}
	return code
}

func (m *Manager) run(ctx context.Context, req installer.Request, result *status.Result) error {
	if err := m.checkCommandLine(req); err != nil {
		return err
	}

	if err := m.waiter.WaitFor(ctx, req.WaitPID); err != nil {
		return err
	}
	if req.WaitPID != 0 && m.cfg.SettleDelay > 0 {
		m.sleep(m.cfg.SettleDelay)
	}

	args := req.InstallArgs()
	if req.ExpectVersion != "" {
		args = append([]string{"--expect-version", req.ExpectVersion}, args...)
	}
	spec := process.Spec{
		Path:    m.installerPath,
		Args:    args,
		Dir:     filepath.Dir(m.installerPath),
		Elevate: req.NeedsElevation,
	}
	start := time.Now()
	installCode, err := m.runner.Run(ctx, spec)
	if err != nil {
		logging.Event("launch", "do_install", "failed", "Installer could not be run", logging.WithError(err))
		return err
	}
	result.InstallCode = installCode
	logging.Event("launch", "do_install", "completed", "Installer finished",
		logging.WithContext("exit_code", installCode), logging.WithDuration(time.Since(start)))

	if installCode != 0 {
		logging.Error(fmt.Sprintf("do_install returned error code %d. Install failed.", installCode))
		if !m.cfg.RelaunchOnInstallFailure {
			return nil
		}
	}

	if req.RelaunchAfter == "" {
		logging.Warn("No program to relaunch")
		return nil
	}
	if err := m.opener.Open(req.RelaunchAfter); err != nil {
		logging.Event("relaunch", "open", "failed", "Relaunch failed", logging.WithError(err))
		return err
	}
	result.Relaunched = true
	logging.Event("relaunch", "open", "completed", "Program relaunched",
		logging.WithContext("target", req.RelaunchAfter))
	return nil
}

// checkCommandLine rejects requests whose do_install command line would
// exceed the platform limit.
func (m *Manager) checkCommandLine(req installer.Request) error {
	if m.installerPath == "" {
		return exitcode.New(exitcode.KindLaunch, exitcode.LaunchFailed, "can't locate %s", m.cfg.InstallerBinary)
	}
	n := len(process.QuoteParam(m.installerPath)) + 1 + len(process.QuoteParams(req.InstallArgs()))
	if n > m.cfg.MaxArgLength {
		return exitcode.Precondition("installer command line is %d bytes, limit is %d", n, m.cfg.MaxArgLength)
	}
	if _, err := os.Stat(m.installerPath); errors.Is(err, os.ErrNotExist) {
		logging.Warn("Installer not found next to instmanager", "path", m.installerPath)
	}
	return nil
}
