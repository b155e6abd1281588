//go:build windows

// pkg/selfupdate/selfdelete_windows.go - delayed removal through a detached cmd.exe

package selfupdate

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/windowsadmins/finisher/pkg/logging"
)

func comspec() string {
	if c := os.Getenv("ComSpec"); c != "" {
		return c
	}
	root := os.Getenv("SystemRoot")
	if root == "" {
		root = `C:\Windows`
	}
	return filepath.Join(root, "System32", "cmd.exe")
}

// scheduleDelete starts a hidden, detached cmd.exe that outlives this
// process. It is not waited for.
func (s *SelfDeleter) scheduleDelete(dir string) error {
	shell := comspec()
	cmd := exec.Command(shell)
	cmd.Dir = os.TempDir()
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine:       deleteCommandLine(shell, dir, s.Delay),
		HideWindow:    true,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
	logging.Debug("Scheduling self delete", "cmdline", cmd.SysProcAttr.CmdLine)

	if err := s.start(cmd); err != nil {
		return err
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}
	return nil
}
