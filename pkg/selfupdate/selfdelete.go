// pkg/selfupdate/selfdelete.go - removal of the helper's own temporary directory

package selfupdate

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/windowsadmins/finisher/pkg/exitcode"
)

// SelfDeleter removes the directory the helper runs from. On Windows the
// running image locks it, so a detached shell deletes it after Delay.
type SelfDeleter struct {
	Delay time.Duration

	start func(*exec.Cmd) error
}

// NewSelfDeleter returns a SelfDeleter using delay on platforms that need one.
func NewSelfDeleter(delay time.Duration) *SelfDeleter {
	return &SelfDeleter{
		Delay: delay,
		start: func(cmd *exec.Cmd) error { return cmd.Start() },
	}
}

// ScheduleSelfDelete arranges for dir to be removed. An empty dir is a no-op.
// Failures carry exit code 3.
func (s *SelfDeleter) ScheduleSelfDelete(dir string) error {
	if dir == "" {
		return nil
	}
	if err := checkSelfDir(dir); err != nil {
		return exitcode.Wrap(err, exitcode.KindCleanupWarning, exitcode.SelfDeleteFailed,
			"refusing to delete %s", dir)
	}
	if err := s.scheduleDelete(filepath.Clean(dir)); err != nil {
		return exitcode.Wrap(err, exitcode.KindCleanupWarning, exitcode.SelfDeleteFailed,
			"failed to delete %s", dir)
	}
	return nil
}

func checkSelfDir(dir string) error {
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("not an absolute path")
	}
	clean := filepath.Clean(dir)
	if filepath.Dir(clean) == clean {
		return fmt.Errorf("filesystem root")
	}
	return nil
}

// deleteCommandLine builds the cmd.exe command line that waits about delay
// and then removes dir. ping paces the wait since timeout needs a console.
func deleteCommandLine(comspec, dir string, delay time.Duration) string {
	pings := int(delay/time.Second) + 1
	if pings < 2 {
		pings = 2
	}
	return fmt.Sprintf(`"%s" /c ping -n %d 127.0.0.1 >NUL 2>&1 & rmdir /s /q "%s" >NUL 2>&1`, comspec, pings, dir)
}
