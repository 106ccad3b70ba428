package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect resolves the running host into a *Host. It uses runtime.GOOS and
// runtime.GOARCH for identification and gopsutil for the human-readable
// description.
//
// Description detection is best effort: if gopsutil fails, the Host is
// still returned with an empty Description. Identification failures are
// hard errors (UnsupportedPlatformError).
func (d *RealDetector) Detect(ctx context.Context) (*Host, error) {
	return describe(ctx, runtime.GOOS, runtime.GOARCH)
}

// describe is the pure core of detection, split out so tests can cover
// OS/arch combinations the test runner is not executing on.
func describe(ctx context.Context, goos, goarch string) (*Host, error) {
	arch, err := normalizeArch(goarch)
	if err != nil {
		return nil, &UnsupportedPlatformError{OS: goos, Arch: goarch}
	}

	triple, err := tripleFor(goos, arch)
	if err != nil {
		return nil, &UnsupportedPlatformError{OS: goos, Arch: goarch}
	}

	h := &Host{
		OS:         goos,
		Arch:       arch,
		ArchRaw:    goarch,
		Triple:     triple,
		Convention: conventionFor(goos),
	}

	// Human-readable description only; never fails the detection.
	if platform, _, version, err := host.PlatformInformationWithContext(ctx); err == nil {
		h.Description = strings.TrimSpace(platform + " " + version)
	}

	return h, nil
}

// normalizeArch converts GOARCH values to normalized architecture names.
func normalizeArch(arch string) (string, error) {
	switch arch {
	case "amd64", "x86_64":
		return "amd64", nil
	case "arm64", "aarch64":
		return "arm64", nil
	default:
		return "", fmt.Errorf("unsupported architecture: %s", arch)
	}
}

// tripleFor maps an OS and normalized architecture to the host triple used
// in artifact names.
func tripleFor(goos, arch string) (string, error) {
	switch goos + "/" + arch {
	case "linux/amd64":
		return TripleLinuxAMD64, nil
	case "linux/arm64":
		return TripleLinuxARM64, nil
	case "darwin/amd64":
		return TripleDarwinAMD64, nil
	case "darwin/arm64":
		return TripleDarwinARM64, nil
	case "windows/amd64":
		return TripleWindowsAMD64, nil
	default:
		return "", fmt.Errorf("no host triple for %s/%s", goos, arch)
	}
}

// conventionFor selects the environment persistence convention for an OS.
func conventionFor(goos string) EnvConvention {
	if goos == "windows" {
		return EnvRegistry
	}
	return EnvExportFile
}
