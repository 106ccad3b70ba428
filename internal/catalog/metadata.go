package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Metadata is the raw component table the catalog is built from. The same
// schema is used by the compiled-in defaults and by user-supplied YAML
// override files.
type Metadata struct {
	Components []ComponentMeta `yaml:"components"`
}

// ComponentMeta describes the published versions of one component.
type ComponentMeta struct {
	Name     string        `yaml:"name"`
	Targets  []string      `yaml:"targets,omitempty"` // target triples served; empty = any
	Versions []VersionMeta `yaml:"versions"`
}

// VersionMeta describes one published version and its per-host artifacts.
type VersionMeta struct {
	Version   string         `yaml:"version"`
	Artifacts []ArtifactMeta `yaml:"artifacts"`
}

// ArtifactMeta describes the artifact for one host triple.
type ArtifactMeta struct {
	Host      string `yaml:"host"` // host triple the artifact runs on
	URL       string `yaml:"url"`
	Format    string `yaml:"format"`
	Checksum  string `yaml:"checksum,omitempty"`
	Size      int64  `yaml:"size,omitempty"`
	Signature string `yaml:"signature,omitempty"`
}

// LoadMetadataFile reads a YAML metadata file.
func LoadMetadataFile(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata file: %w", err)
	}

	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata file %s: %w", path, err)
	}

	if len(meta.Components) == 0 {
		return Metadata{}, fmt.Errorf("metadata file %s declares no components", path)
	}

	return meta, nil
}

const distBase = "https://dist.forgeup.dev"

// Embedded target triples the default catalog publishes components for.
var defaultTargets = []string{
	"xtensa-esp32-none-elf",
	"xtensa-esp32s2-none-elf",
	"xtensa-esp32s3-none-elf",
	"riscv32imc-unknown-none-elf",
	"riscv32imac-unknown-none-elf",
}

// DefaultTargets returns the target triples the default catalog serves.
func DefaultTargets() []string {
	out := make([]string, len(defaultTargets))
	copy(out, defaultTargets)
	return out
}

// DefaultMetadata returns the compiled-in component table. Host artifacts
// are zip on Windows and tar.xz elsewhere, matching how the dist server
// packages releases; the build tool ships as tar.gz everywhere.
func DefaultMetadata() Metadata {
	return Metadata{
		Components: []ComponentMeta{
			{
				Name:    string(Toolchain),
				Targets: defaultTargets,
				Versions: []VersionMeta{
					releaseVersion(Toolchain, "1.73.0.0"),
					releaseVersion(Toolchain, "1.73.0.1"),
					releaseVersion(Toolchain, "1.74.0.0"),
				},
			},
			{
				Name:    string(StandardLibrary),
				Targets: defaultTargets,
				Versions: []VersionMeta{
					releaseVersion(StandardLibrary, "1.73.0.0"),
					releaseVersion(StandardLibrary, "1.73.0.1"),
					releaseVersion(StandardLibrary, "1.74.0.0"),
				},
			},
			{
				Name:    string(LinkerToolchain),
				Targets: defaultTargets,
				Versions: []VersionMeta{
					releaseVersion(LinkerToolchain, "13.2.0"),
				},
			},
			{
				Name:    string(ClangRuntime),
				Targets: defaultTargets,
				Versions: []VersionMeta{
					releaseVersion(ClangRuntime, "17.0.1"),
				},
			},
			{
				Name: string(BuildTool),
				Versions: []VersionMeta{
					{
						Version:   "2.5.1",
						Artifacts: tarGzArtifacts(BuildTool, "2.5.1"),
					},
				},
			},
		},
	}
}

// releaseVersion builds the per-host artifact list for a standard release:
// tar.xz on POSIX hosts, zip on Windows.
func releaseVersion(name Name, version string) VersionMeta {
	hosts := []string{
		"x86_64-unknown-linux-gnu",
		"aarch64-unknown-linux-gnu",
		"x86_64-apple-darwin",
		"aarch64-apple-darwin",
		"x86_64-pc-windows-msvc",
	}

	arts := make([]ArtifactMeta, 0, len(hosts))
	for _, host := range hosts {
		format := string(FormatTarXz)
		if host == "x86_64-pc-windows-msvc" {
			format = string(FormatZip)
		}
		file := fmt.Sprintf("%s-%s-%s.%s", name, version, host, format)
		arts = append(arts, ArtifactMeta{
			Host:      host,
			URL:       fmt.Sprintf("%s/%s/v%s/%s", distBase, name, version, file),
			Format:    format,
			Signature: fmt.Sprintf("%s/%s/v%s/%s.asc", distBase, name, version, file),
		})
	}

	return VersionMeta{Version: version, Artifacts: arts}
}

// tarGzArtifacts builds the artifact list for components shipped as tar.gz
// on every host.
func tarGzArtifacts(name Name, version string) []ArtifactMeta {
	hosts := []string{
		"x86_64-unknown-linux-gnu",
		"aarch64-unknown-linux-gnu",
		"x86_64-apple-darwin",
		"aarch64-apple-darwin",
		"x86_64-pc-windows-msvc",
	}

	arts := make([]ArtifactMeta, 0, len(hosts))
	for _, host := range hosts {
		file := fmt.Sprintf("%s-%s-%s.tar.gz", name, version, host)
		arts = append(arts, ArtifactMeta{
			Host:   host,
			URL:    fmt.Sprintf("%s/%s/v%s/%s", distBase, name, version, file),
			Format: string(FormatTarGz),
		})
	}
	return arts
}
