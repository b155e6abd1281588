//go:build windows

// pkg/process/launch_windows.go - installer launch through ShellExecuteEx and relaunch through ShellExecute

package process

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/logging"
)

var (
	shell32             = windows.NewLazySystemDLL("shell32.dll")
	procShellExecuteExW = shell32.NewProc("ShellExecuteExW")
)

const (
	seeMaskNoCloseProcess = 0x00000040
	seeMaskFlagNoUI       = 0x00000400
	swShowNormal          = 1

	handleWaitPoll = 250 * time.Millisecond
)

// shellExecuteInfo mirrors SHELLEXECUTEINFOW.
type shellExecuteInfo struct {
	cbSize         uint32
	fMask          uint32
	hwnd           windows.Handle
	lpVerb         *uint16
	lpFile         *uint16
	lpParameters   *uint16
	lpDirectory    *uint16
	nShow          int32
	hInstApp       windows.Handle
	lpIDList       uintptr
	lpClass        *uint16
	hkeyClass      windows.Handle
	dwHotKey       uint32
	hIconOrMonitor windows.Handle
	hProcess       windows.Handle
}

type shellRunner struct{}

func newRunner() Runner {
	return &shellRunner{}
}

// Run starts spec through the shell. Elevation uses the "runas" verb, which
// shows the UAC prompt.
func (r *shellRunner) Run(_ context.Context, spec Spec) (int, error) {
	verb := "open"
	if spec.Elevate {
		verb = "runas"
	}
	params := QuoteParams(spec.Args)
	logging.Info("Running installer", "path", spec.Path, "verb", verb)
	logging.Debug("Installer parameters", "params", params)

	h, err := shellExecuteEx(verb, spec.Path, params, spec.Dir)
	if err != nil {
		return 0, exitcode.Wrap(err, exitcode.KindLaunch, exitcode.LaunchFailed,
			"can't launch %s", spec.Path)
	}
	if h == 0 {
		return 0, exitcode.New(exitcode.KindLaunch, exitcode.ChildWaitFailed,
			"no process handle for %s", spec.Path)
	}
	defer windows.CloseHandle(h)

	if err := waitHandle(context.Background(), h, handleWaitPoll); err != nil {
		return 0, exitcode.Wrap(err, exitcode.KindLaunch, exitcode.ChildWaitFailed,
			"can't wait for %s", spec.Path)
	}

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return 0, exitcode.Wrap(err, exitcode.KindLaunch, exitcode.ChildExitCodeUnavailable,
			"can't get %s return code", spec.Path)
	}
	return int(code), nil
}

func shellExecuteEx(verb, file, params, dir string) (windows.Handle, error) {
	info := shellExecuteInfo{
		fMask: seeMaskNoCloseProcess | seeMaskFlagNoUI,
		nShow: swShowNormal,
	}
	info.cbSize = uint32(unsafe.Sizeof(info))

	var err error
	if info.lpVerb, err = windows.UTF16PtrFromString(verb); err != nil {
		return 0, err
	}
	if info.lpFile, err = windows.UTF16PtrFromString(file); err != nil {
		return 0, err
	}
	if params != "" {
		if info.lpParameters, err = windows.UTF16PtrFromString(params); err != nil {
			return 0, err
		}
	}
	if dir != "" {
		if info.lpDirectory, err = windows.UTF16PtrFromString(dir); err != nil {
			return 0, err
		}
	}

	if err := procShellExecuteExW.Find(); err != nil {
		return 0, err
	}
	r1, _, e1 := procShellExecuteExW.Call(uintptr(unsafe.Pointer(&info)))
	if r1 == 0 {
		var errno syscall.Errno
		if errors.As(e1, &errno) && errno != 0 {
			return 0, fmt.Errorf("ShellExecuteEx: %w", errno)
		}
		return 0, errors.New("ShellExecuteEx failed")
	}
	return info.hProcess, nil
}

type shellOpener struct{}

func newOpener() Opener {
	return &shellOpener{}
}

// Open asks the shell to open target. ShellExecute results of 32 or below
// are failures.
func (o *shellOpener) Open(target string) error {
	logging.Info("Relaunching program", "target", target)

	verb, err := windows.UTF16PtrFromString("open")
	if err != nil {
		return exitcode.Wrap(err, exitcode.KindLaunch, exitcode.RelaunchFailed, "error relaunching program %s", target)
	}
	file, err := windows.UTF16PtrFromString(target)
	if err != nil {
		return exitcode.Wrap(err, exitcode.KindLaunch, exitcode.RelaunchFailed, "error relaunching program %s", target)
	}
	if err := windows.ShellExecute(0, verb, file, nil, nil, swShowNormal); err != nil {
		return exitcode.Wrap(err, exitcode.KindLaunch, exitcode.RelaunchFailed, "error relaunching program %s", target)
	}
	return nil
}
