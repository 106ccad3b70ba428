// Package app wires the command line interface around the installer.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgeup/forgeup/internal/catalog"
	"github.com/forgeup/forgeup/internal/fetch"
	"github.com/forgeup/forgeup/internal/installer"
	"github.com/forgeup/forgeup/internal/platform"
)

// Exit codes. Partial failure and state-persist failure are distinct so
// scripts can tell a retryable run from one that needs inspection.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitPartial       = 2
	ExitPersistFailed = 3
)

var (
	rootDir      string
	metadataPath string
	targets      []string
	workers      int
	noProgress   bool

	// RootCmd is the forgeup command tree root.
	RootCmd = &cobra.Command{
		Use:   "forgeup",
		Short: "Install and manage embedded cross-compilation toolchains",
		Long: `forgeup installs the compiler toolchain, standard library sources,
linker toolchain, clang runtime and build tool for embedded targets into
versioned directories and keeps your environment pointed at them.

Examples:
  # Install everything for the default targets
  forgeup install

  # Install one component at a pinned version
  forgeup install toolchain@1.73.0.1 --targets xtensa-esp32-none-elf

  # Show what is installed
  forgeup list

  # Move every installed component to its newest release
  forgeup update

  # Remove installed components
  forgeup uninstall`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "installation root (default: $FORGEUP_HOME or ~/.forgeup)")
	RootCmd.PersistentFlags().StringVar(&metadataPath, "metadata", "", "component catalog YAML override")
	RootCmd.PersistentFlags().StringSliceVar(&targets, "targets", catalog.DefaultTargets(), "target triples to install components for")
	RootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "maximum concurrent component operations (default: CPU count)")
	RootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable download progress bars")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(installCmd)
	RootCmd.AddCommand(uninstallCmd)
	RootCmd.AddCommand(updateCmd)
	RootCmd.AddCommand(listCmd)
}

// exitError carries a specific exit code through cobra's error return.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

// Run executes the CLI and returns the process exit code.
func Run() int {
	if err := RootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.msg != "" {
				errorf("%s", ee.msg)
			}
			return ee.code
		}
		errorf("%v", err)
		return ExitFailure
	}
	return ExitOK
}

// resolveRoot picks the installation root: flag, then FORGEUP_HOME, then
// ~/.forgeup.
func resolveRoot() (string, error) {
	if rootDir != "" {
		return rootDir, nil
	}
	if home := os.Getenv("FORGEUP_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}
	return filepath.Join(home, ".forgeup"), nil
}

// detector is swapped by tests; commands go through buildInstaller so the
// host is probed once per invocation.
var detector = platform.NewDetector()

// buildInstaller assembles the installer for one command invocation. The
// host is detected exactly once here and handed back for reuse.
func buildInstaller(cmd *cobra.Command) (*installer.Installer, *platform.Host, error) {
	host, err := detector.Detect(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	meta := catalog.DefaultMetadata()
	if metadataPath != "" {
		meta, err = catalog.LoadMetadataFile(metadataPath)
		if err != nil {
			return nil, nil, err
		}
	}
	cat, err := catalog.New(meta)
	if err != nil {
		return nil, nil, err
	}

	root, err := resolveRoot()
	if err != nil {
		return nil, nil, err
	}

	cfg := installer.Config{
		RootDir: root,
		Host:    *host,
		Catalog: cat,
		Retry:   fetch.DefaultRetryPolicy(),
		Workers: workers,
	}
	if !noProgress && stderrIsTTY() {
		cfg.Progress = os.Stderr
	}

	inst, err := installer.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return inst, host, nil
}

// parseComponents turns command arguments into the component request set.
// Each argument is "name" or "name@version"; no arguments means every
// component. Target-scoped components expand across the --targets list.
func parseComponents(args []string) ([]catalog.Component, error) {
	type req struct {
		name    catalog.Name
		version string
	}

	var reqs []req
	if len(args) == 0 {
		for _, name := range catalog.AllNames() {
			reqs = append(reqs, req{name: name})
		}
	}
	for _, arg := range args {
		nameStr, version, _ := strings.Cut(arg, "@")
		name := catalog.Name(nameStr)
		if !name.Valid() {
			return nil, fmt.Errorf("unknown component %q (expected one of %s)", nameStr, nameList())
		}
		reqs = append(reqs, req{name: name, version: version})
	}

	var comps []catalog.Component
	for _, r := range reqs {
		if r.name == catalog.BuildTool {
			comps = append(comps, catalog.Component{Name: r.name, Version: r.version})
			continue
		}
		for _, target := range targets {
			comps = append(comps, catalog.Component{Name: r.name, Version: r.version, Target: target})
		}
	}
	return comps, nil
}

func nameList() string {
	names := catalog.AllNames()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

// summaryExit converts a run summary into the command's error/exit state.
func summaryExit(sum installer.Summary, total int) error {
	switch {
	case sum.PersistFailed:
		return &exitError{code: ExitPersistFailed, msg: "install state could not be persisted; run again after checking the root directory"}
	case sum.Failed == 0:
		return nil
	case sum.Failed == total:
		return &exitError{code: ExitFailure}
	default:
		return &exitError{code: ExitPartial}
	}
}
