// pkg/exitcode/exitcode.go - process exit codes and the error taxonomy that maps onto them.

package exitcode

import (
	"errors"
	"fmt"
)

// Exit codes shared by do_install and instmanager. The values are part of the
// external contract with the updater that launches the helpers.
const (
	OK = 0

	// do_install
	BackupFailed          = 1
	InstallFailed         = 2
	CleanupFailed         = 3
	RollbackCleanupFailed = 50
	RollbackRestoreFailed = 51

	// instmanager
	SelfDeleteFailed         = 3
	WaitFailed               = 16
	ChildWaitFailed          = 17
	ChildExitCodeUnavailable = 18
	LaunchFailed             = 31
	RelaunchFailed           = 32

	// both
	BadArguments = 15
)

// Kind classifies a failure independent of the numeric exit code.
type Kind int

const (
	KindUnknown Kind = iota
	KindPrecondition
	KindTransaction
	KindSynchronization
	KindLaunch
	KindCleanupWarning
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindTransaction:
		return "transaction"
	case KindSynchronization:
		return "synchronization"
	case KindLaunch:
		return "launch"
	case KindCleanupWarning:
		return "cleanup_warning"
	default:
		return "unknown"
	}
}

// Error carries the exit code a failure should terminate the process with.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without an underlying cause.
func New(kind Kind, code int, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and exit code to err. A nil err yields nil.
func Wrap(err error, kind Kind, code int, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Precondition reports invalid input found before any filesystem change.
func Precondition(format string, args ...any) *Error {
	return New(KindPrecondition, BadArguments, format, args...)
}

// Of returns the exit code for err: OK for nil, the outermost *Error code
// when present, 1 otherwise.
func Of(err error) int {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 1
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
