// cmd/do_install/main.go

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/windowsadmins/finisher/pkg/config"
	"github.com/windowsadmins/finisher/pkg/exitcode"
	"github.com/windowsadmins/finisher/pkg/fileop"
	"github.com/windowsadmins/finisher/pkg/installer"
	"github.com/windowsadmins/finisher/pkg/logging"
	"github.com/windowsadmins/finisher/pkg/utils"
	"github.com/windowsadmins/finisher/pkg/version"
)

const component = "do_install"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <backup-what> <backup-name> <move-from> <move-to>\n\n", component)
	fmt.Fprintln(os.Stderr, "Replaces <move-to> with <move-from>, keeping <backup-what> as <backup-name>")
	fmt.Fprintln(os.Stderr, "until the new files are in place. An empty <backup-name> deletes <backup-what>.")
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
	expectVersion := pflag.String("expect-version", "", "Fail and roll back unless the installed version is at least this.")
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

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitcode.BadArguments
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if verbosity > 0 {
		cfg.Verbose = true
	}

	if err := logging.Init(cfg, component); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
	}
	defer logging.CloseLogger()

	// Once started the transaction runs to completion; rollback only
	// happens on a failed step.
	signal.Ignore(os.Interrupt, syscall.SIGTERM)

	code := install(cfg, pflag.Args(), *expectVersion)
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

func install(cfg *config.Configuration, args []string, expectVersion string) int {
	req, err := installer.ParseInstallArgs(args)
	if err == nil {
		req.ExpectVersion = expectVersion
		err = req.Validate(cfg.MaxArgLength)
	}
	if err != nil {
		logging.Error("Invalid arguments", "error", err)
		pflag.Usage()
		return exitcode.Of(err)
	}

	logging.Info("do_install starting", "version", version.Version().Version, "request", req.String())
	orch := installer.New(fileop.New(), installer.WithVerifier(installer.VersionVerifier{File: cfg.VersionFile}))
	outcome := orch.Run(req)
	if outcome.Err != nil {
		logging.Error("Install failed", "state", outcome.State, "code", outcome.Code, "error", outcome.Err)
		return outcome.Code
	}
	logging.Info("Install completed", "state", outcome.State)
	return outcome.Code
}
