// pkg/installer/state.go - states of the install transaction

package installer

// State is a step of the install transaction.
type State int

const (
	StateStart State = iota
	StateBackingUp
	StateInstalling
	StateCleaningUp
	StateDone
	StateFailedBackup
	StateRollingBack
	StateFailedRolledBack
	StateFailedRollbackFailed
	StateFailedCleanup
)

var stateNames = map[State]string{
	StateStart:                "start",
	StateBackingUp:            "backing_up",
	StateInstalling:           "installing",
	StateCleaningUp:           "cleaning_up",
	StateDone:                 "done",
	StateFailedBackup:         "failed_backup",
	StateRollingBack:          "rolling_back",
	StateFailedRolledBack:     "failed_rolled_back",
	StateFailedRollbackFailed: "failed_rollback_failed",
	StateFailedCleanup:        "failed_cleanup",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailedBackup, StateFailedRolledBack, StateFailedRollbackFailed, StateFailedCleanup:
		return true
	}
	return false
}
