// pkg/extract/extract.go - recognition and disposal of the updater's extraction directory.

package extract

import (
	"path/filepath"
	"strings"

	"github.com/windowsadmins/finisher/pkg/fileop"
	"github.com/windowsadmins/finisher/pkg/logging"
)

// TempDirPrefix starts every extraction directory name; TokenLen random
// characters follow it.
const (
	TempDirPrefix = "upd4pyi_tmp_xtract_"
	TokenLen      = 6
)

// IsTempDirName reports whether the final len(TempDirPrefix)+TokenLen
// characters of name are the prefix followed by exactly TokenLen characters.
func IsTempDirName(name string) bool {
	n := len(TempDirPrefix) + TokenLen
	if len(name) < n {
		return false
	}
	tail := name[len(name)-n:]
	return strings.HasPrefix(tail, TempDirPrefix) && !strings.ContainsAny(tail[len(TempDirPrefix):], `/\`)
}

// Cleaner deletes the extraction directory holding a payload.
type Cleaner struct {
	tx fileop.Transaction
}

// NewCleaner returns a Cleaner deleting through tx.
func NewCleaner(tx fileop.Transaction) *Cleaner {
	return &Cleaner{tx: tx}
}

// Cleanup deletes the parent directory of moveFrom when its name marks it as
// an extraction directory. Any other parent is left alone and reported as a
// successful no-op, as is a parent that is already gone.
func (c *Cleaner) Cleanup(moveFrom string) fileop.Result {
	parent := filepath.Dir(filepath.Clean(moveFrom))
	if !IsTempDirName(filepath.Base(parent)) {
		logging.Debug("Not an extraction directory, leaving it", "path", parent)
		return fileop.Result{Success: true, Source: parent, Noop: true}
	}

	logging.Info("Cleaning up", "path", parent)
	res := c.tx.Delete(parent)
	if res.NotFound() {
		return fileop.Result{Success: true, Source: parent, Noop: true}
	}
	return res
}
