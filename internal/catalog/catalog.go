package catalog

import (
	"fmt"
	"sort"

	"github.com/forgeup/forgeup/internal/platform"
)

// Catalog resolves components against a validated metadata table.
type Catalog struct {
	byName map[Name]ComponentMeta
}

// New creates a catalog from metadata, validating component names and
// archive formats up front so Resolve never has to.
func New(meta Metadata) (*Catalog, error) {
	byName := make(map[Name]ComponentMeta, len(meta.Components))

	for _, cm := range meta.Components {
		name := Name(cm.Name)
		if !name.Valid() {
			return nil, fmt.Errorf("metadata: unknown component name %q", cm.Name)
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("metadata: duplicate component %q", cm.Name)
		}
		for _, vm := range cm.Versions {
			if _, err := parseVersion(vm.Version); err != nil {
				return nil, fmt.Errorf("metadata: component %s: %w", name, err)
			}
			for _, am := range vm.Artifacts {
				if !Format(am.Format).Valid() {
					return nil, fmt.Errorf("metadata: component %s %s: unsupported format %q", name, vm.Version, am.Format)
				}
				if am.URL == "" {
					return nil, fmt.Errorf("metadata: component %s %s: artifact for %s has no URL", name, vm.Version, am.Host)
				}
			}
		}
		byName[name] = cm
	}

	return &Catalog{byName: byName}, nil
}

// Resolve maps a requested component to the concrete artifact for the given
// host. It fails with UnknownComponentError when the name/target
// combination has no published artifact for the host, and with
// VersionNotFoundError when the version constraint matches nothing.
func (c *Catalog) Resolve(comp Component, host *platform.Host) (*Artifact, error) {
	cm, ok := c.byName[comp.Name]
	if !ok {
		return nil, &UnknownComponentError{Name: comp.Name, Target: comp.Target}
	}

	if !cm.servesTarget(comp.Target) {
		return nil, &UnknownComponentError{Name: comp.Name, Target: comp.Target}
	}

	version := comp.Version
	if version == "" {
		version = cm.latestVersion()
	}
	vm, resolved, err := cm.resolveVersion(comp.Name, version)
	if err != nil {
		return nil, err
	}

	for _, am := range vm.Artifacts {
		if am.Host != host.Triple {
			continue
		}
		resolvedComp := comp
		resolvedComp.Version = resolved
		return &Artifact{
			Component:    resolvedComp,
			URL:          am.URL,
			Format:       Format(am.Format),
			Checksum:     am.Checksum,
			Size:         am.Size,
			SignatureURL: am.Signature,
			InstallDir:   fmt.Sprintf("%s-%s", comp.Name, resolved),
		}, nil
	}

	return nil, &UnknownComponentError{Name: comp.Name, Target: comp.Target, Host: host.Triple}
}

// Latest returns the newest published version for a component, or an
// UnknownComponentError if the component is not in the catalog.
func (c *Catalog) Latest(name Name) (string, error) {
	cm, ok := c.byName[name]
	if !ok {
		return "", &UnknownComponentError{Name: name}
	}
	return cm.latestVersion(), nil
}

// servesTarget reports whether the component has artifacts for the target
// triple. An empty target list means the component is target-independent.
func (cm ComponentMeta) servesTarget(target string) bool {
	if len(cm.Targets) == 0 {
		return true
	}
	for _, t := range cm.Targets {
		if t == target {
			return true
		}
	}
	return false
}

// resolveVersion applies the published-version matching rules: a full
// version must match exactly, and a 3-segment version resolves to the
// highest published subpatch with that prefix.
func (cm ComponentMeta) resolveVersion(name Name, requested string) (VersionMeta, string, error) {
	req, err := parseVersion(requested)
	if err != nil {
		return VersionMeta{}, "", &VersionNotFoundError{Name: name, Version: requested}
	}

	var candidates []VersionMeta
	for _, vm := range cm.Versions {
		pub, err := parseVersion(vm.Version)
		if err != nil {
			continue
		}
		if req.matches(pub) {
			candidates = append(candidates, vm)
		}
	}

	if len(candidates) == 0 {
		return VersionMeta{}, "", &VersionNotFoundError{Name: name, Version: requested}
	}

	sort.Slice(candidates, func(i, j int) bool {
		vi, _ := parseVersion(candidates[i].Version)
		vj, _ := parseVersion(candidates[j].Version)
		return vi.less(vj)
	})

	best := candidates[len(candidates)-1]
	return best, best.Version, nil
}

// latestVersion returns the highest published version string.
func (cm ComponentMeta) latestVersion() string {
	best := ""
	var bestV version
	for _, vm := range cm.Versions {
		v, err := parseVersion(vm.Version)
		if err != nil {
			continue
		}
		if best == "" || bestV.less(v) {
			best = vm.Version
			bestV = v
		}
	}
	return best
}
