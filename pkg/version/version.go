// pkg/version/version.go - build version information and version comparison.

package version

import (
	"fmt"
	"os"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// These values are private which ensures they can only be set with the build flags.
var (
	version   = "unknown"
	branch    = "unknown"
	revision  = "unknown"
	goVersion = "unknown"
	buildDate = "unknown"
	appName   = "finisher"
)

// Info is a structure with version build information about the current application.
type Info struct {
	Version   string `json:"version"`
	Branch    string `json:"branch"`
	Revision  string `json:"revision"`
	GoVersion string `json:"go_version"`
	BuildDate string `json:"build_date"`
}

// Version returns a structure with the current version information.
func Version() Info {
	return Info{
		Version:   version,
		Branch:    branch,
		Revision:  revision,
		GoVersion: goVersion,
		BuildDate: buildDate,
	}
}

// Print outputs the application name and version string.
func Print(name string) {
	if name == "" {
		name = appName
	}
	fmt.Printf("%s %s\n", name, Version().Version)
}

// PrintFull prints the application name and detailed version information.
func PrintFull(name string) {
	Print(name)
	v := Version()
	fmt.Printf("  branch: \t%s\n", v.Branch)
	fmt.Printf("  revision: \t%s\n", v.Revision)
	fmt.Printf("  build date: \t%s\n", v.BuildDate)
	fmt.Printf("  go version: \t%s\n", v.GoVersion)
}

// AtLeast reports whether have is the same as or newer than want.
func AtLeast(have, want string) (bool, error) {
	h, err := goversion.NewVersion(strings.TrimSpace(have))
	if err != nil {
		return false, fmt.Errorf("invalid installed version %q: %w", have, err)
	}
	w, err := goversion.NewVersion(strings.TrimSpace(want))
	if err != nil {
		return false, fmt.Errorf("invalid expected version %q: %w", want, err)
	}
	return h.GreaterThanOrEqual(w), nil
}

// ReadFileVersion returns the version recorded in path. Executables carrying
// a Windows version resource report that; any other file is read as text and
// its first line is used.
func ReadFileVersion(path string) (string, error) {
	if v, err := executableVersion(path); err == nil && v != "" {
		return v, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read version file: %w", err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("version file %s is empty", path)
	}
	return line, nil
}
