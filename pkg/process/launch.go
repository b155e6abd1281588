// pkg/process/launch.go - running the installer, optionally elevated, and relaunching the application

package process

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/logging"
)

// Spec describes a process to start. Elevate asks for administrator rights;
// how they are obtained is up to the platform.
type Spec struct {
	Path    string
	Args    []string
	Dir     string
	Elevate bool
}

// Runner starts a process and waits for its exit code. Errors carry exit
// code 31 when the process could not be started, 17 when waiting failed and
// 18 when no exit code could be retrieved. The child always runs to
// completion: ctx never stops it.
type Runner interface {
	Run(ctx context.Context, spec Spec) (int, error)
}

// Opener starts target detached, the way a user opening it would, and does
// not wait for it. Errors carry exit code 32.
type Opener interface {
	Open(target string) error
}

// NewRunner returns the platform Runner.
func NewRunner() Runner {
	return newRunner()
}

// NewOpener returns the platform Opener.
func NewOpener() Opener {
	return newOpener()
}

// runCommand starts cmd and maps its outcome onto the Runner error contract.
func runCommand(cmd *exec.Cmd) (int, error) {
	if err := cmd.Start(); err != nil {
		return 0, exitcode.Wrap(err, exitcode.KindLaunch, exitcode.LaunchFailed,
			"can't launch %s", cmd.Path)
	}
	logging.Debug("Started process", "path", cmd.Path, "pid", cmd.Process.Pid)

	err := cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		if code < 0 {
			return 0, exitcode.Wrap(err, exitcode.KindLaunch, exitcode.ChildExitCodeUnavailable,
				"can't get %s return code", cmd.Path)
		}
		return code, nil
	case err != nil:
		return 0, exitcode.Wrap(err, exitcode.KindLaunch, exitcode.ChildWaitFailed,
			"can't wait for %s", cmd.Path)
	}
	return cmd.ProcessState.ExitCode(), nil
}

// consoleCommand wires cmd to the helper's own console. It is not tied to a
// context: killing do_install between its moves would skip the rollback.
func consoleCommand(name string, args []string, dir string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd
}
