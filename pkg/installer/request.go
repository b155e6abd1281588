// pkg/installer/request.go - the arguments shared by do_install and instmanager

package installer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/windowsadmins/finisher/pkg/exitcode"
)

// Request describes one installation. The first four fields are do_install's
// arguments; the rest are only used by instmanager.
type Request struct {
	BackupWhat string // existing installation
	BackupName string // where to keep it during the install; empty deletes it
	MoveFrom   string // new files, inside the extraction directory
	MoveTo     string // final location of the new files

	WaitPID        int
	NeedsElevation bool
	SelfTempDir    string
	RelaunchAfter  string

	ExpectVersion string
}

// InstallArgCount and ManagerArgCount are the positional argument counts of
// do_install and instmanager.
const (
	InstallArgCount = 4
	ManagerArgCount = 8
)

// ParseInstallArgs builds a Request from do_install's positional arguments.
func ParseInstallArgs(args []string) (Request, error) {
	if len(args) != InstallArgCount {
		return Request{}, exitcode.Precondition("expected %d arguments, got %d", InstallArgCount, len(args))
	}
	return Request{
		BackupWhat: args[0],
		BackupName: args[1],
		MoveFrom:   args[2],
		MoveTo:     args[3],
	}, nil
}

// ParseManagerArgs builds a Request from instmanager's positional arguments:
// wait-pid need-sudo backup-what backup-name move-from move-to self-temp-dir relaunch-after.
func ParseManagerArgs(args []string) (Request, error) {
	if len(args) != ManagerArgCount {
		return Request{}, exitcode.Precondition("expected %d arguments, got %d", ManagerArgCount, len(args))
	}

	pid, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || pid < 0 {
		return Request{}, exitcode.Precondition("invalid wait-pid %q", args[0])
	}
	elevate, err := parseFlag(args[1])
	if err != nil {
		return Request{}, exitcode.Precondition("invalid need-sudo %q", args[1])
	}

	return Request{
		WaitPID:        pid,
		NeedsElevation: elevate,
		BackupWhat:     args[2],
		BackupName:     args[3],
		MoveFrom:       args[4],
		MoveTo:         args[5],
		SelfTempDir:    args[6],
		RelaunchAfter:  args[7],
	}, nil
}

// parseFlag accepts any integer (non-zero is true) or a boolean word.
func parseFlag(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n != 0, nil
	}
	return strconv.ParseBool(s)
}

// InstallArgs returns the positional arguments to pass to do_install.
func (r Request) InstallArgs() []string {
	return []string{r.BackupWhat, r.BackupName, r.MoveFrom, r.MoveTo}
}

// Validate checks the request before any filesystem change. Paths must be
// absolute, free of NUL bytes and no longer than maxLen; optional paths may
// be empty. Failures carry the precondition exit code.
func (r Request) Validate(maxLen int) error {
	paths := []struct {
		name     string
		value    string
		optional bool
	}{
		{"backup-what", r.BackupWhat, false},
		{"backup-name", r.BackupName, true},
		{"move-from", r.MoveFrom, false},
		{"move-to", r.MoveTo, false},
		{"self-temp-dir", r.SelfTempDir, true},
	}
	for _, p := range paths {
		if p.value == "" {
			if p.optional {
				continue
			}
			return exitcode.Precondition("%s must not be empty", p.name)
		}
		if err := checkArg(p.name, p.value, maxLen); err != nil {
			return err
		}
		if !filepath.IsAbs(p.value) {
			return exitcode.Precondition("%s must be an absolute path, got %q", p.name, p.value)
		}
	}
	if err := checkArg("relaunch-after", r.RelaunchAfter, maxLen); err != nil {
		return err
	}

	if r.BackupName != "" && samePath(r.BackupName, r.BackupWhat) {
		return exitcode.Precondition("backup-name must differ from backup-what")
	}
	if samePath(r.MoveFrom, r.MoveTo) {
		return exitcode.Precondition("move-from must differ from move-to")
	}
	return nil
}

func checkArg(name, value string, maxLen int) error {
	if strings.ContainsRune(value, 0) {
		return exitcode.Precondition("%s contains a NUL byte", name)
	}
	if maxLen > 0 && len(value) > maxLen {
		return exitcode.Precondition("%s is longer than %d bytes", name, maxLen)
	}
	return nil
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

func (r Request) String() string {
	return fmt.Sprintf("backup %q to %q, install %q to %q", r.BackupWhat, r.BackupName, r.MoveFrom, r.MoveTo)
}
