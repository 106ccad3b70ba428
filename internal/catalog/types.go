// Package catalog maps logical components to concrete download artifacts.
//
// Resolution is a pure lookup against a metadata table: the catalog never
// performs network or file I/O during Resolve, so it can be tested with
// fixed tables. Metadata comes from the compiled-in default table or from
// a YAML file supplied by the user.
package catalog

import "fmt"

// Name identifies a logical component forgeup can install.
type Name string

const (
	// Toolchain is the cross-compiler toolchain.
	Toolchain Name = "toolchain"
	// StandardLibrary is the standard library source distribution.
	StandardLibrary Name = "standard-library"
	// LinkerToolchain is the GCC linker toolchain and sysroot.
	LinkerToolchain Name = "linker-toolchain"
	// ClangRuntime is the LLVM/Clang runtime libraries.
	ClangRuntime Name = "clang-runtime"
	// BuildTool is the project build tool.
	BuildTool Name = "build-tool"
)

// AllNames lists every installable component, in install order.
func AllNames() []Name {
	return []Name{Toolchain, StandardLibrary, LinkerToolchain, ClangRuntime, BuildTool}
}

// Valid returns true if n is a known component name.
func (n Name) Valid() bool {
	switch n {
	case Toolchain, StandardLibrary, LinkerToolchain, ClangRuntime, BuildTool:
		return true
	default:
		return false
	}
}

// String returns the string representation of the component name.
func (n Name) String() string {
	return string(n)
}

// Component is a requested installable unit. Identity is (Name, Target).
type Component struct {
	Name    Name
	Version string // requested version, possibly a 3-segment prefix
	Target  string // target triple the component serves
}

// Identity returns the component identity key used for install records and
// per-component locks. Components that are not target-specific use the
// bare name, matching how install records are keyed.
func (c Component) Identity() string {
	if c.Target == "" {
		return string(c.Name)
	}
	return string(c.Name) + "@" + c.Target
}

// Format is a supported archive container format. The format is known a
// priori from the catalog; it is never sniffed from content.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
	FormatTarXz Format = "tar.xz"
)

// Valid returns true if f is a supported archive format.
func (f Format) Valid() bool {
	switch f {
	case FormatZip, FormatTarGz, FormatTarXz:
		return true
	default:
		return false
	}
}

// Artifact is the resolved download descriptor for a component on a given
// host. It is derived per run and never persisted.
type Artifact struct {
	Component    Component // with Version resolved to the exact published version
	URL          string
	Format       Format
	Checksum     string // "sha256:<hex>" or "b3:<hex>"; empty when unpublished
	Size         int64  // expected size in bytes; 0 when unknown
	SignatureURL string // detached PGP signature; empty when unpublished
	InstallDir   string // versioned directory name, e.g. "toolchain-1.2.0"
}

// UnknownComponentError indicates the component/target combination has no
// published artifact for the host.
type UnknownComponentError struct {
	Name   Name
	Target string
	Host   string // host triple; empty when the component itself is unknown
}

func (e *UnknownComponentError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("unknown component: no %s artifact for target %s on host %s", e.Name, e.Target, e.Host)
	}
	return fmt.Sprintf("unknown component: %s for target %s", e.Name, e.Target)
}

// VersionNotFoundError indicates the requested version constraint matches
// no published version.
type VersionNotFoundError struct {
	Name    Name
	Version string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("version not found: %s %s", e.Name, e.Version)
}
