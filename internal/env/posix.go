package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const exportFileHeader = "# Generated by forgeup. Do not edit; changes are overwritten on every run.\n"

// exportFileTarget writes a shell-sourceable export file. The file is
// regenerated in full on every apply with deterministic ordering, so an
// unchanged assignment set produces byte-identical output. User profile
// scripts are never touched; they source this file.
type exportFileTarget struct {
	path string
}

func newExportFileTarget(path string) *exportFileTarget {
	return &exportFileTarget{path: path}
}

func (t *exportFileTarget) Apply(assignments []Assignment) error {
	content := renderExports(assignments)

	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return &WriteError{Target: t.path, Cause: err}
	}

	tmpPath := t.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0644); err != nil {
		return &WriteError{Target: t.path, Cause: err}
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		os.Remove(tmpPath)
		return &WriteError{Target: t.path, Cause: err}
	}
	return nil
}

func (t *exportFileTarget) SourceHint() string {
	return fmt.Sprintf(`. "%s"`, t.path)
}

// renderExports produces the file body: plain exports first, then a
// single PATH line prepending all component bin directories.
func renderExports(assignments []Assignment) string {
	var b strings.Builder
	b.WriteString(exportFileHeader)

	var pathDirs []string
	for _, a := range assignments {
		if a.PathEntry {
			pathDirs = append(pathDirs, a.Value)
			continue
		}
		fmt.Fprintf(&b, "export %s=%q\n", a.Name, a.Value)
	}

	if len(pathDirs) > 0 {
		fmt.Fprintf(&b, "export PATH=%q\n", strings.Join(pathDirs, ":")+":$PATH")
	}

	return b.String()
}
