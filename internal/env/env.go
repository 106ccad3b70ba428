// Package env computes and persists the environment configuration for
// installed components. Assignments are recomputed in full from install
// state on every apply rather than patched incrementally, so the
// persisted environment can never drift from what is actually installed.
package env

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/forgeup/forgeup/internal/catalog"
	"github.com/forgeup/forgeup/internal/platform"
	"github.com/forgeup/forgeup/internal/state"
)

// Assignment is one environment variable contribution. PathEntry marks
// the value as a PATH list element rather than a plain variable.
type Assignment struct {
	Name      string
	Value     string
	PathEntry bool
}

// WriteError indicates the environment target could not be persisted.
// Extracted files are untouched; re-running the install retries the write.
type WriteError struct {
	Target string
	Cause  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write environment (%s): %v", e.Target, e.Cause)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// Target persists assignments in the host's durable environment store.
// Exactly one variant is selected at startup; nothing else branches on
// the host convention.
type Target interface {
	// Apply replaces all previous contributions with assignments.
	// Applying the same assignments twice is a no-op at the byte level.
	Apply(assignments []Assignment) error

	// SourceHint returns the activation instruction shown after install,
	// or "" when activation is automatic.
	SourceHint() string
}

// SelectTarget picks the environment variant for host, rooted at rootDir.
func SelectTarget(host platform.Host, rootDir string) (Target, error) {
	switch host.Convention {
	case platform.EnvExportFile:
		return newExportFileTarget(filepath.Join(rootDir, "env")), nil
	case platform.EnvRegistry:
		return newRegistryTarget(rootDir)
	default:
		return nil, fmt.Errorf("no environment target for convention %q", host.Convention)
	}
}

// Compute derives the full assignment set from the installed records.
// Output ordering is deterministic: plain variables sorted by name, then
// PATH entries sorted by value, with duplicates collapsed.
func Compute(records []state.Record, host platform.Host) []Assignment {
	vars := make(map[string]string)
	pathSet := make(map[string]bool)

	for _, r := range records {
		switch catalog.Name(r.Name) {
		case catalog.Toolchain, catalog.LinkerToolchain, catalog.BuildTool:
			pathSet[filepath.Join(r.InstallPath, "bin")] = true
		case catalog.ClangRuntime:
			pathSet[filepath.Join(r.InstallPath, "bin")] = true
			vars["LIBCLANG_PATH"] = filepath.Join(r.InstallPath, "lib")
		case catalog.StandardLibrary:
			vars["RUST_SRC_PATH"] = r.InstallPath
		}
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	dirs := make([]string, 0, len(pathSet))
	for dir := range pathSet {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	out := make([]Assignment, 0, len(names)+len(dirs))
	for _, name := range names {
		out = append(out, Assignment{Name: name, Value: vars[name]})
	}
	for _, dir := range dirs {
		out = append(out, Assignment{Name: "PATH", Value: dir, PathEntry: true})
	}
	return out
}
