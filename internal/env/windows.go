//go:build windows

package env

import (
	"strings"

	"golang.org/x/sys/windows/registry"
)

// managedVars are the plain variables this tool may have written. Any of
// them absent from a new assignment set is deleted on apply.
var managedVars = []string{"LIBCLANG_PATH", "RUST_SRC_PATH"}

// registryTarget persists per-user environment variables through the
// registry, the durable environment store on this platform. PATH is
// merged rather than overwritten: unrelated entries survive in order and
// only stale directories under root are dropped.
type registryTarget struct {
	root string
}

func newRegistryTarget(root string) (Target, error) {
	return &registryTarget{root: root}, nil
}

func (t *registryTarget) Apply(assignments []Assignment) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, "Environment", registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return &WriteError{Target: "HKCU\\Environment", Cause: err}
	}
	defer key.Close()

	present := make(map[string]bool)
	var additions []string
	for _, a := range assignments {
		if a.PathEntry {
			additions = append(additions, a.Value)
			continue
		}
		present[a.Name] = true
		if err := key.SetStringValue(a.Name, a.Value); err != nil {
			return &WriteError{Target: a.Name, Cause: err}
		}
	}

	for _, name := range managedVars {
		if present[name] {
			continue
		}
		if err := key.DeleteValue(name); err != nil && err != registry.ErrNotExist {
			return &WriteError{Target: name, Cause: err}
		}
	}

	current, _, err := key.GetStringValue("Path")
	if err != nil && err != registry.ErrNotExist {
		return &WriteError{Target: "Path", Cause: err}
	}

	merged := MergePathList(strings.Split(current, ";"), additions, t.root)
	if err := key.SetStringValue("Path", strings.Join(merged, ";")); err != nil {
		return &WriteError{Target: "Path", Cause: err}
	}

	return nil
}

func (t *registryTarget) SourceHint() string {
	return ""
}
