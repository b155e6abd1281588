//go:build !windows

// pkg/process/launch_other.go - installer launch through sudo-style helpers and detached relaunch

package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/logging"
)

type execRunner struct {
	lookPath func(string) (string, error)
	getenv   func(string) string
	euid     func() int
}

func newRunner() Runner {
	return &execRunner{lookPath: exec.LookPath, getenv: os.Getenv, euid: os.Geteuid}
}

func (r *execRunner) Run(_ context.Context, spec Spec) (int, error) {
	name, args := spec.Path, spec.Args
	if spec.Elevate && r.euid() != 0 {
		var err error
		name, args, err = r.elevatedCommand(spec)
		if err != nil {
			return 0, exitcode.Wrap(err, exitcode.KindLaunch, exitcode.LaunchFailed,
				"can't launch %s with administrator rights", spec.Path)
		}
	}
	logging.Info("Running installer", "path", spec.Path, "elevate", spec.Elevate)
	return runCommand(consoleCommand(name, args, spec.Dir))
}

// elevatedCommand wraps spec in the platform's privilege helper: osascript
// on macOS; pkexec, gksudo or kdesudo under a desktop session and sudo
// otherwise on other systems.
func (r *execRunner) elevatedCommand(spec Spec) (string, []string, error) {
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf("do shell script %s with administrator privileges",
			appleScriptQuote(ShellCommand(spec.Path, spec.Args)))
		return "osascript", []string{"-e", script}, nil
	}

	if r.getenv("DISPLAY") != "" || r.getenv("WAYLAND_DISPLAY") != "" {
		if p, err := r.lookPath("pkexec"); err == nil {
			return p, append([]string{spec.Path}, spec.Args...), nil
		}
		for _, helper := range []string{"gksudo", "kdesudo"} {
			if p, err := r.lookPath(helper); err == nil {
				return p, []string{"--", ShellCommand(spec.Path, spec.Args)}, nil
			}
		}
	}
	if p, err := r.lookPath("sudo"); err == nil {
		return p, append([]string{"--", spec.Path}, spec.Args...), nil
	}
	return "", nil, fmt.Errorf("no privilege helper found (tried pkexec, gksudo, kdesudo, sudo)")
}

type execOpener struct {
	start func(*exec.Cmd) error
}

func newOpener() Opener {
	return &execOpener{start: func(cmd *exec.Cmd) error { return cmd.Start() }}
}

// Open runs an executable target directly and hands anything else (an
// application bundle, a document) to open or xdg-open.
func (o *execOpener) Open(target string) error {
	logging.Info("Relaunching program", "target", target)

	cmd := openCommand(target)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := o.start(cmd); err != nil {
		return exitcode.Wrap(err, exitcode.KindLaunch, exitcode.RelaunchFailed,
			"error relaunching program %s", target)
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}
	return nil
}

func openCommand(target string) *exec.Cmd {
	if runtime.GOOS == "darwin" {
		return exec.Command("open", target)
	}
	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() && unix.Access(target, unix.X_OK) == nil {
		return exec.Command(target)
	}
	return exec.Command("xdg-open", target)
}
