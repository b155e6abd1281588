package installer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/fileop"
)

// recordingTx passes operations to the real filesystem, records them and
// fails the ones listed.
type recordingTx struct {
	fs         *fileop.FS
	moves      [][2]string
	deletes    []string
	failMove   map[string]bool
	failDelete map[string]bool
}

func newRecordingTx() *recordingTx {
	return &recordingTx{fs: fileop.New(), failMove: map[string]bool{}, failDelete: map[string]bool{}}
}

func (r *recordingTx) Move(from, to string) fileop.Result {
	r.moves = append(r.moves, [2]string{from, to})
	if r.failMove[from] {
		return fileop.Result{Source: from, Dest: to, ErrorCode: fileop.CodeAccessDenied, Err: errors.New("access denied")}
	}
	return r.fs.Move(from, to)
}

func (r *recordingTx) Delete(path string) fileop.Result {
	r.deletes = append(r.deletes, path)
	if r.failDelete[path] {
		return fileop.Result{Source: path, ErrorCode: fileop.CodeAccessDenied, Err: errors.New("access denied")}
	}
	return r.fs.Delete(path)
}

func (r *recordingTx) movesFrom(path string) int {
	n := 0
	for _, m := range r.moves {
		if m[0] == path {
			n++
		}
	}
	return n
}

func (r *recordingTx) deletesOf(path string) int {
	n := 0
	for _, d := range r.deletes {
		if d == path {
			n++
		}
	}
	return n
}

type fixture struct {
	app, bkp, xtract, moveFrom string
}

// newFixture lays out an installed app (version 1) and an extracted update
// (version 2) in the updater's extraction directory.
func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		app:    filepath.Join(root, "app"),
		bkp:    filepath.Join(root, "app.bkp"),
		xtract: filepath.Join(root, "tmp", "upd4pyi_tmp_xtract_abcdef"),
	}
	f.moveFrom = filepath.Join(f.xtract, "app")
	writeFile(t, filepath.Join(f.app, "version"), "1")
	writeFile(t, filepath.Join(f.moveFrom, "version"), "2")
	return f
}

func (f fixture) request() Request {
	return Request{BackupWhat: f.app, BackupName: f.bkp, MoveFrom: f.moveFrom, MoveTo: f.app}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunSuccess(t *testing.T) {
	f := newFixture(t)
	tx := newRecordingTx()

	out := New(tx).Run(f.request())

	require.NoError(t, out.Err)
	assert.Equal(t, exitcode.OK, out.Code)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, []State{StateStart, StateBackingUp, StateInstalling, StateCleaningUp, StateDone}, out.Transitions)
	assert.Equal(t, "2", readFile(t, filepath.Join(f.app, "version")))
	assert.NoDirExists(t, f.bkp)
	assert.NoDirExists(t, f.xtract)
	assert.Empty(t, out.Warnings)

	assert.Equal(t, 1, tx.deletesOf(f.bkp), "backup discarded exactly once")
	assert.Equal(t, 0, tx.movesFrom(f.bkp), "backup never restored")
	assert.Equal(t, 1, tx.deletesOf(f.xtract))
}

func TestRunFirstInstall(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.app))
	tx := newRecordingTx()

	out := New(tx).Run(f.request())

	require.Equal(t, exitcode.OK, out.Code)
	assert.Equal(t, "2", readFile(t, filepath.Join(f.app, "version")))
	assert.Equal(t, 0, tx.deletesOf(f.bkp))
}

func TestRunWithoutBackupName(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.BackupName = ""

	out := New(fileop.New()).Run(req)

	require.Equal(t, exitcode.OK, out.Code)
	assert.Equal(t, "2", readFile(t, filepath.Join(f.app, "version")))
	assert.NoDirExists(t, f.xtract)
}

func TestRunBackupFailure(t *testing.T) {
	f := newFixture(t)
	tx := newRecordingTx()
	tx.failMove[f.app] = true

	out := New(tx).Run(f.request())

	assert.Equal(t, exitcode.BackupFailed, out.Code)
	assert.Equal(t, StateFailedBackup, out.State)
	assert.Equal(t, exitcode.KindTransaction, exitcode.KindOf(out.Err))
	assert.Equal(t, "1", readFile(t, filepath.Join(f.app, "version")))
	assert.Equal(t, 0, tx.movesFrom(f.moveFrom), "install never attempted")
	assert.NoDirExists(t, f.xtract)
}

func TestRunInstallFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	tx := newRecordingTx()
	tx.failMove[f.moveFrom] = true

	out := New(tx).Run(f.request())

	assert.Equal(t, exitcode.InstallFailed, out.Code)
	assert.Equal(t, StateFailedRolledBack, out.State)
	assert.Equal(t, []State{StateStart, StateBackingUp, StateInstalling, StateRollingBack, StateFailedRolledBack}, out.Transitions)
	assert.Equal(t, "1", readFile(t, filepath.Join(f.app, "version")))
	assert.NoDirExists(t, f.bkp)
	assert.NoDirExists(t, f.xtract)

	assert.Equal(t, 1, tx.movesFrom(f.bkp), "backup restored exactly once")
	assert.Equal(t, 0, tx.deletesOf(f.bkp), "backup never discarded")
	assert.Equal(t, 1, tx.deletesOf(f.xtract), "extraction directory cleaned once")
}

func TestRunRestoreFailure(t *testing.T) {
	f := newFixture(t)
	tx := newRecordingTx()
	tx.failMove[f.moveFrom] = true
	tx.failMove[f.bkp] = true

	out := New(tx).Run(f.request())

	assert.Equal(t, exitcode.RollbackRestoreFailed, out.Code)
	assert.Equal(t, StateFailedRollbackFailed, out.State)
	assert.NoDirExists(t, f.app)
	assert.Equal(t, "1", readFile(t, filepath.Join(f.bkp, "version")), "backup left for manual recovery")
}

func TestRunRollbackCleanupFailure(t *testing.T) {
	f := newFixture(t)
	tx := newRecordingTx()
	tx.failMove[f.moveFrom] = true
	tx.failDelete[f.app] = true

	out := New(tx).Run(f.request())

	assert.Equal(t, exitcode.RollbackCleanupFailed, out.Code)
	assert.Equal(t, StateFailedRollbackFailed, out.State)
	assert.DirExists(t, f.bkp)
}

func TestRunCleanupFailure(t *testing.T) {
	f := newFixture(t)
	tx := newRecordingTx()
	tx.failDelete[f.xtract] = true

	out := New(tx).Run(f.request())

	assert.Equal(t, exitcode.CleanupFailed, out.Code)
	assert.Equal(t, StateFailedCleanup, out.State)
	assert.Equal(t, "2", readFile(t, filepath.Join(f.app, "version")))
	assert.DirExists(t, f.bkp, "backup kept when the run stops early")
	assert.Equal(t, 1, tx.deletesOf(f.xtract))
}

func TestRunDiscardFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	tx := newRecordingTx()
	tx.failDelete[f.bkp] = true

	out := New(tx).Run(f.request())

	assert.Equal(t, exitcode.OK, out.Code)
	assert.Equal(t, StateDone, out.State)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, exitcode.KindCleanupWarning, exitcode.KindOf(out.Warnings[0]))
	assert.DirExists(t, f.bkp)
}

func TestRunVersionVerification(t *testing.T) {
	t.Run("newer version passes", func(t *testing.T) {
		f := newFixture(t)
		writeFile(t, filepath.Join(f.moveFrom, "VERSION"), "2.1.0\n")
		req := f.request()
		req.ExpectVersion = "2.0"

		out := New(fileop.New(), WithVerifier(VersionVerifier{File: "VERSION"})).Run(req)

		assert.Equal(t, exitcode.OK, out.Code)
	})

	t.Run("older version rolls back", func(t *testing.T) {
		f := newFixture(t)
		writeFile(t, filepath.Join(f.moveFrom, "VERSION"), "1.9.0\n")
		req := f.request()
		req.ExpectVersion = "2.0"

		out := New(fileop.New(), WithVerifier(VersionVerifier{File: "VERSION"})).Run(req)

		assert.Equal(t, exitcode.InstallFailed, out.Code)
		assert.Equal(t, "1", readFile(t, filepath.Join(f.app, "version")))
		assert.NoFileExists(t, filepath.Join(f.app, "VERSION"))
	})
}
