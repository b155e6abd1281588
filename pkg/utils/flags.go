//go:build windows

// pkg/utils/flags.go - command line recovery for helpers started through ShellExecuteEx

package utils

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// PatchWindowsArgs replaces os.Args with the process command line split by
// CommandLineToArgvW. instmanager hands do_install its arguments as a single
// ShellExecuteEx parameter string quoted by process.QuoteParams, and
// CommandLineToArgvW is the exact inverse of that quoting, so paths with
// spaces, embedded quotes or trailing backslashes come back unchanged.
// Call it before pflag.Parse.
func PatchWindowsArgs() {
	if args, ok := splitCommandLine(); ok {
		os.Args = args
	}
}

func splitCommandLine() ([]string, bool) {
	line := windows.GetCommandLine()
	if line == nil {
		return nil, false
	}
	var argc int32
	argv, err := windows.CommandLineToArgv(line, &argc)
	if err != nil || argv == nil || argc < 1 {
		return nil, false
	}
	defer windows.LocalFree(windows.Handle(uintptr(unsafe.Pointer(argv))))

	ptrs := unsafe.Slice((**uint16)(unsafe.Pointer(argv)), argc)
	args := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		if p != nil {
			args = append(args, windows.UTF16PtrToString(p))
		}
	}
	return args, true
}
