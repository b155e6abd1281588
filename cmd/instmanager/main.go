// cmd/instmanager/main.go

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/windowsadmins/finisher/pkg/config"
	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/installer"
	"github.com/windowsadmins/finisher/pkg/logging"
	"github.com/windowsadmins/finisher/pkg/selfupdate"
	"github.com/windowsadmins/finisher/pkg/utils"
	"github.com/windowsadmins/finisher/pkg/version"
)

const component = "instmanager"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <wait-pid> <need-sudo> <backup-what> <backup-name> <move-from> <move-to> <self-temp-dir> <relaunch-after>\n\n", component)
	fmt.Fprintln(os.Stderr, "Waits for <wait-pid> to exit, runs do_install (elevated when <need-sudo> is set),")
	fmt.Fprintln(os.Stderr, "opens <relaunch-after> and removes <self-temp-dir>. An empty <relaunch-after>")
	fmt.Fprintln(os.Stderr, "skips the relaunch without failing. <self-temp-dir> is removed on every exit,")
	fmt.Fprintln(os.Stderr, "including invalid arguments.")
	fmt.Fprintln(os.Stderr)
	pflag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	utils.PatchWindowsArgs()

	configPath := pflag.String("config", "", "Path to a finisher.yaml configuration file.")
	logDir := pflag.String("log-dir", "", "Directory for log files (overrides LogDir).")
	resultDir := pflag.String("result-dir", "", "Write result.json into this directory (overrides ResultDir).")
	expectVersion := pflag.String("expect-version", "", "Passed to do_install to verify the installed version.")
	noPause := pflag.Bool("no-pause", false, "Never wait for Enter after a failure.")
	versionFlag := pflag.Bool("version", false, "Print the version and exit.")
	var verbosity int
	pflag.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv)")
	pflag.CommandLine.SetInterspersed(false)
	pflag.Usage = usage
	pflag.Parse()

	if *versionFlag {
		version.PrintFull(component)
		return exitcode.OK
	}

	// A bad configuration must not stop self cleanup, so fall back to defaults.
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration, using defaults: %v\n", err)
		cfg = config.GetDefaultConfig()
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *resultDir != "" {
		cfg.ResultDir = *resultDir
	}
	if verbosity > 0 {
		cfg.Verbose = true
	}

	if err := logging.Init(cfg, component); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
	}
	defer logging.CloseLogger()

	// Signals only cut short the wait for the predecessor; a running
	// do_install is always waited for.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := manage(ctx, cfg, pflag.Args(), *expectVersion)
	status := "completed"
	if code != exitcode.OK {
		status = "failed"
	}
	if err := logging.EndSession(status, code); err != nil {
		logging.Warn("Failed to write session summary", "error", err)
	}
	if code != exitcode.OK && cfg.PauseOnFailure && !*noPause {
		utils.PauseOnFailure(os.Stdin, os.Stderr, code)
	}
	return code
}

func manage(ctx context.Context, cfg *config.Configuration, args []string, expectVersion string) int {
	if _, err := installer.ParseManagerArgs(args); err != nil {
		pflag.Usage()
	}

	installerPath, err := selfupdate.InstallerPath(cfg)
	if err != nil {
		logging.Error("Cannot locate do_install", "error", err)
	}

	logging.Info("instmanager starting", "version", version.Version().Version, "session", logging.GetSessionDir())
	return selfupdate.NewManager(cfg, installerPath).RunArgs(ctx, args, expectVersion)
}
