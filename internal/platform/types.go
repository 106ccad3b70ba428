// Package platform resolves the host operating system and architecture
// into the identifiers forgeup needs to select download artifacts and
// environment conventions.
//
// Detection happens exactly once at startup; every other package receives
// a *Host value and never probes the machine again.
package platform

import (
	"context"
	"fmt"
)

// Host triples for the platforms forgeup publishes artifacts for.
const (
	TripleLinuxAMD64   = "x86_64-unknown-linux-gnu"
	TripleLinuxARM64   = "aarch64-unknown-linux-gnu"
	TripleDarwinAMD64  = "x86_64-apple-darwin"
	TripleDarwinARM64  = "aarch64-apple-darwin"
	TripleWindowsAMD64 = "x86_64-pc-windows-msvc"
)

// EnvConvention describes how durable environment configuration is
// persisted on a host.
type EnvConvention string

const (
	// EnvExportFile means assignments are written to a shell-sourceable
	// export file (POSIX-like hosts).
	EnvExportFile EnvConvention = "export-file"
	// EnvRegistry means assignments are written to the per-user persistent
	// environment store (Windows hosts).
	EnvRegistry EnvConvention = "registry"
)

// Host contains the resolved host platform information.
type Host struct {
	OS          string        // "linux", "darwin", "windows"
	Arch        string        // normalized: "amd64", "arm64"
	ArchRaw     string        // original GOARCH value
	Triple      string        // host triple, e.g. "x86_64-unknown-linux-gnu"
	Convention  EnvConvention // how environment assignments are persisted
	Description string        // human-readable OS description, best effort
}

// PathListSeparator returns the separator used in PATH-like variables on
// this host.
func (h *Host) PathListSeparator() string {
	if h.IsWindows() {
		return ";"
	}
	return ":"
}

// ExeSuffix returns the executable filename suffix for this host.
func (h *Host) ExeSuffix() string {
	if h.IsWindows() {
		return ".exe"
	}
	return ""
}

// IsWindows returns true if the host is Windows.
func (h *Host) IsWindows() bool {
	return h.OS == "windows"
}

// IsPosix returns true for hosts that use the export-file convention.
func (h *Host) IsPosix() bool {
	return h.Convention == EnvExportFile
}

// Detector is the interface for host platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Host, error)
}

// UnsupportedPlatformError indicates the host OS/architecture combination
// has no published artifacts.
type UnsupportedPlatformError struct {
	OS   string
	Arch string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %s/%s (supported: linux, darwin, windows on amd64/arm64)", e.OS, e.Arch)
}
