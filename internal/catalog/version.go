package catalog

import (
	"fmt"
	"regexp"
	"strconv"
)

// Published toolchain versions carry an optional fourth segment for
// toolchain-only rebuilds of the same upstream release (e.g. 1.65.0.1).
// A 3-segment request matches any published subpatch of that release.
var versionRe = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:\.(0|[1-9]\d*))?$`)

type version struct {
	major, minor, patch int
	subpatch            int
	hasSubpatch         bool
}

func parseVersion(s string) (version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return version{}, fmt.Errorf("invalid version %q", s)
	}

	var v version
	v.major, _ = strconv.Atoi(m[1])
	v.minor, _ = strconv.Atoi(m[2])
	v.patch, _ = strconv.Atoi(m[3])
	if m[4] != "" {
		v.subpatch, _ = strconv.Atoi(m[4])
		v.hasSubpatch = true
	}
	return v, nil
}

// matches reports whether a published version satisfies this requested
// version. A request without a subpatch matches any subpatch of the same
// release; a request with a subpatch must match exactly.
func (v version) matches(published version) bool {
	if v.major != published.major || v.minor != published.minor || v.patch != published.patch {
		return false
	}
	if !v.hasSubpatch {
		return true
	}
	return published.hasSubpatch == v.hasSubpatch && published.subpatch == v.subpatch
}

// less orders versions; a missing subpatch sorts below subpatch 0.
func (v version) less(o version) bool {
	if v.major != o.major {
		return v.major < o.major
	}
	if v.minor != o.minor {
		return v.minor < o.minor
	}
	if v.patch != o.patch {
		return v.patch < o.patch
	}
	if v.hasSubpatch != o.hasSubpatch {
		return !v.hasSubpatch
	}
	return v.subpatch < o.subpatch
}
