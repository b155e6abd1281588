// pkg/installer/verify.go - post-install version check

package installer

import (
	"fmt"
	"path/filepath"

	"github.com/windowsadmins/finisher/pkg/logging"
	"github.com/windowsadmins/finisher/pkg/version"
)

// VersionVerifier requires the version recorded in File (relative to the
// install target) to be at least the request's ExpectVersion. Requests
// without an expected version pass.
type VersionVerifier struct {
	File string
}

// Verify implements Verifier.
func (v VersionVerifier) Verify(req Request) error {
	if req.ExpectVersion == "" || v.File == "" {
		return nil
	}

	path := filepath.Join(req.MoveTo, v.File)
	installed, err := version.ReadFileVersion(path)
	if err != nil {
		return err
	}
	ok, err := version.AtLeast(installed, req.ExpectVersion)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("installed version %s is older than expected %s", installed, req.ExpectVersion)
	}
	logging.Info("Installed version verified", "version", installed, "expected", req.ExpectVersion)
	return nil
}
