package selfupdate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/finisher/pkg/config"
	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/installer"
	"github.com/windowsadmins/finisher/pkg/process"
	"github.com/windowsadmins/finisher/pkg/status"
)

// calls records the order of the steps the Manager takes.
type calls []string

type fakeWaiter struct {
	log *calls
	err error
}

func (w *fakeWaiter) WaitFor(_ context.Context, pid int) error {
	*w.log = append(*w.log, "wait")
	return w.err
}

type fakeRunner struct {
	log  *calls
	spec process.Spec
	code int
	err  error
}

func (r *fakeRunner) Run(_ context.Context, spec process.Spec) (int, error) {
	*r.log = append(*r.log, "install")
	r.spec = spec
	return r.code, r.err
}

type fakeOpener struct {
	log    *calls
	target string
	err    error
}

func (o *fakeOpener) Open(target string) error {
	*o.log = append(*o.log, "relaunch")
	o.target = target
	return o.err
}

type fakeCleaner struct {
	log *calls
	dir string
	err error
}

func (c *fakeCleaner) ScheduleSelfDelete(dir string) error {
	*c.log = append(*c.log, "self_cleanup")
	c.dir = dir
	return c.err
}

type harness struct {
	log     calls
	waiter  *fakeWaiter
	runner  *fakeRunner
	opener  *fakeOpener
	cleaner *fakeCleaner
	slept   []time.Duration
	cfg     *config.Configuration
	exe     string
}

func newHarness() *harness {
	h := &harness{cfg: config.GetDefaultConfig(), exe: "/opt/mgr/do_install"}
	h.waiter = &fakeWaiter{log: &h.log}
	h.runner = &fakeRunner{log: &h.log}
	h.opener = &fakeOpener{log: &h.log}
	h.cleaner = &fakeCleaner{log: &h.log}
	return h
}

func (h *harness) manager(opts ...Option) *Manager {
	opts = append([]Option{
		WithWaiter(h.waiter),
		WithRunner(h.runner),
		WithOpener(h.opener),
		WithSelfCleaner(h.cleaner),
		WithSleep(func(d time.Duration) {
			h.log = append(h.log, "settle")
			h.slept = append(h.slept, d)
		}),
	}, opts...)
	return NewManager(h.cfg, h.exe, opts...)
}

func request() installer.Request {
	return installer.Request{
		WaitPID:        4242,
		NeedsElevation: true,
		BackupWhat:     "/opt/app",
		BackupName:     "/opt/app.bkp",
		MoveFrom:       "/tmp/upd4pyi_tmp_xtract_abcdef/app",
		MoveTo:         "/opt/app",
		SelfTempDir:    "/tmp/mgr",
		RelaunchAfter:  "/opt/app/run",
	}
}

func TestRunSuccess(t *testing.T) {
	h := newHarness()

	code := h.manager().Run(context.Background(), request())

	assert.Equal(t, exitcode.OK, code)
	assert.Equal(t, calls{"wait", "settle", "install", "relaunch", "self_cleanup"}, h.log)
	assert.Equal(t, []time.Duration{time.Second}, h.slept)
	assert.Equal(t, "/opt/mgr/do_install", h.runner.spec.Path)
	assert.True(t, h.runner.spec.Elevate)
	assert.Equal(t, []string{"/opt/app", "/opt/app.bkp", "/tmp/upd4pyi_tmp_xtract_abcdef/app", "/opt/app"}, h.runner.spec.Args)
	assert.Equal(t, "/opt/app/run", h.opener.target)
	assert.Equal(t, "/tmp/mgr", h.cleaner.dir)
}

func TestRunWithoutPredecessorSkipsSettle(t *testing.T) {
	h := newHarness()
	req := request()
	req.WaitPID = 0

	code := h.manager().Run(context.Background(), req)

	assert.Equal(t, exitcode.OK, code)
	assert.Equal(t, calls{"wait", "install", "relaunch", "self_cleanup"}, h.log)
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		code  int
		steps calls
	}{
		{
			name:  "wait fails",
			setup: func(h *harness) { h.waiter.err = exitcode.New(exitcode.KindSynchronization, exitcode.WaitFailed, "wait") },
			code:  exitcode.WaitFailed,
			steps: calls{"wait", "self_cleanup"},
		},
		{
			name:  "launch fails",
			setup: func(h *harness) { h.runner.err = exitcode.New(exitcode.KindLaunch, exitcode.LaunchFailed, "launch") },
			code:  exitcode.LaunchFailed,
			steps: calls{"wait", "settle", "install", "self_cleanup"},
		},
		{
			name:  "no exit code",
			setup: func(h *harness) { h.runner.err = exitcode.New(exitcode.KindLaunch, exitcode.ChildExitCodeUnavailable, "code") },
			code:  exitcode.ChildExitCodeUnavailable,
			steps: calls{"wait", "settle", "install", "self_cleanup"},
		},
		{
			name:  "relaunch fails",
			setup: func(h *harness) { h.opener.err = exitcode.New(exitcode.KindLaunch, exitcode.RelaunchFailed, "open") },
			code:  exitcode.RelaunchFailed,
			steps: calls{"wait", "settle", "install", "relaunch", "self_cleanup"},
		},
		{
			name:  "self cleanup fails after success",
			setup: func(h *harness) { h.cleaner.err = errors.New("no comspec") },
			code:  exitcode.SelfDeleteFailed,
			steps: calls{"wait", "settle", "install", "relaunch", "self_cleanup"},
		},
		{
			name: "self cleanup failure keeps earlier code",
			setup: func(h *harness) {
				h.opener.err = exitcode.New(exitcode.KindLaunch, exitcode.RelaunchFailed, "open")
				h.cleaner.err = errors.New("no comspec")
			},
			code:  exitcode.RelaunchFailed,
			steps: calls{"wait", "settle", "install", "relaunch", "self_cleanup"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			tt.setup(h)

			code := h.manager().Run(context.Background(), request())

			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.steps, h.log)
		})
	}
}

func TestRunRelaunchesAfterFailedInstall(t *testing.T) {
	h := newHarness()
	h.runner.code = exitcode.InstallFailed
	dir := t.TempDir()

	code := h.manager(WithResultDir(dir)).Run(context.Background(), request())

	assert.Equal(t, exitcode.OK, code)
	assert.Contains(t, h.log, "relaunch")

	res, err := status.NewResultHandler(dir).Read()
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, exitcode.InstallFailed, res.InstallCode)
	assert.True(t, res.Relaunched)
}

func TestRunSkipsRelaunchWhenConfigured(t *testing.T) {
	h := newHarness()
	h.cfg.RelaunchOnInstallFailure = false
	h.runner.code = exitcode.InstallFailed

	code := h.manager().Run(context.Background(), request())

	assert.Equal(t, exitcode.OK, code)
	assert.Equal(t, calls{"wait", "settle", "install", "self_cleanup"}, h.log)
}

func TestRunPassesExpectedVersion(t *testing.T) {
	h := newHarness()
	req := request()
	req.ExpectVersion = "2.0.1"

	require.Equal(t, exitcode.OK, h.manager().Run(context.Background(), req))
	assert.Equal(t, []string{"--expect-version", "2.0.1"}, h.runner.spec.Args[:2])
	assert.Len(t, h.runner.spec.Args, 6)
}

func TestRunRejectsOversizedCommandLine(t *testing.T) {
	h := newHarness()
	h.cfg.MaxArgLength = 64

	code := h.manager().Run(context.Background(), request())

	assert.Equal(t, exitcode.BadArguments, code)
	assert.Equal(t, calls{"self_cleanup"}, h.log)
}

func TestDeleteCommandLine(t *testing.T) {
	cmd := deleteCommandLine(`C:\Windows\System32\cmd.exe`, `C:\Users\me\AppData\Local\Temp\mgr 1`, 2*time.Second)
	assert.Equal(t, `"C:\Windows\System32\cmd.exe" /c ping -n 3 127.0.0.1 >NUL 2>&1 & rmdir /s /q "C:\Users\me\AppData\Local\Temp\mgr 1" >NUL 2>&1`, cmd)

	assert.True(t, strings.Contains(deleteCommandLine("cmd.exe", `C:\x`, 0), "ping -n 2 "))
}

func TestScheduleSelfDeleteGuards(t *testing.T) {
	s := NewSelfDeleter(0)
	require.NoError(t, s.ScheduleSelfDelete(""))

	for _, dir := range []string{"relative/dir", string(filepath.Separator)} {
		err := s.ScheduleSelfDelete(dir)
		assert.Equal(t, exitcode.SelfDeleteFailed, exitcode.Of(err), dir)
	}
}

func TestRunSkipsEmptyRelaunchTarget(t *testing.T) {
	h := newHarness()
	req := request()
	req.RelaunchAfter = ""
	dir := t.TempDir()

	code := h.manager(WithResultDir(dir)).Run(context.Background(), req)

	assert.Equal(t, exitcode.OK, code)
	assert.Equal(t, calls{"wait", "settle", "install", "self_cleanup"}, h.log)
	res, err := status.NewResultHandler(dir).Read()
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Relaunched)
}

// managerArgs returns a valid instmanager argument vector rooted in root.
func managerArgs(root string) []string {
	return []string{
		"0",
		"1",
		filepath.Join(root, "app"),
		filepath.Join(root, "app.bkp"),
		filepath.Join(root, "upd4pyi_tmp_xtract_abcdef", "app"),
		filepath.Join(root, "app"),
		filepath.Join(root, "mgr"),
		filepath.Join(root, "app", "run"),
	}
}

func TestRunArgsRunsSequence(t *testing.T) {
	h := newHarness()
	root := t.TempDir()

	code := h.manager().RunArgs(context.Background(), managerArgs(root), "")

	assert.Equal(t, exitcode.OK, code)
	assert.Equal(t, calls{"wait", "install", "relaunch", "self_cleanup"}, h.log)
	assert.Equal(t, filepath.Join(root, "mgr"), h.cleaner.dir)
}

func TestRunArgsCleansUpAfterInvalidArguments(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name   string
		mutate func(args []string)
	}{
		{"relative backup-what", func(args []string) { args[2] = "relative/app" }},
		{"bad wait-pid", func(args []string) { args[0] = "abc" }},
		{"bad need-sudo", func(args []string) { args[1] = "maybe" }},
		{"same move paths", func(args []string) { args[4] = args[5] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			args := managerArgs(root)
			tt.mutate(args)

			code := h.manager().RunArgs(context.Background(), args, "")

			assert.Equal(t, exitcode.BadArguments, code)
			assert.Equal(t, calls{"self_cleanup"}, h.log)
			assert.Equal(t, filepath.Join(root, "mgr"), h.cleaner.dir)
		})
	}
}

func TestRunArgsWithoutSelfDir(t *testing.T) {
	h := newHarness()

	code := h.manager().RunArgs(context.Background(), []string{"0", "0"}, "")

	assert.Equal(t, exitcode.BadArguments, code)
	assert.Empty(t, h.log)
}

func TestRunArgsLeavesOversizedSelfDir(t *testing.T) {
	h := newHarness()
	h.cfg.MaxArgLength = 200
	args := managerArgs(t.TempDir())
	args[6] = filepath.Join(args[6], strings.Repeat("x", 300))

	code := h.manager().RunArgs(context.Background(), args, "")

	assert.Equal(t, exitcode.BadArguments, code)
	assert.Empty(t, h.log)
}

func TestRunArgsWithoutInstallerStillCleansUp(t *testing.T) {
	h := newHarness()
	h.exe = ""
	root := t.TempDir()

	code := h.manager().RunArgs(context.Background(), managerArgs(root), "")

	assert.Equal(t, exitcode.LaunchFailed, code)
	assert.Equal(t, calls{"self_cleanup"}, h.log)
	assert.Equal(t, filepath.Join(root, "mgr"), h.cleaner.dir)
}
