//go:build !windows

// pkg/selfupdate/selfdelete_other.go - direct removal of the helper directory

package selfupdate

import (
	"os"

	"github.com/windowsadmins/finisher/pkg/logging"
)

// scheduleDelete removes dir right away: a running executable does not lock
// its directory here.
func (s *SelfDeleter) scheduleDelete(dir string) error {
	logging.Debug("Removing self directory", "path", dir)
	return os.RemoveAll(dir)
}
