package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/forgeup/forgeup/internal/catalog"
	"github.com/forgeup/forgeup/internal/installer"
	"github.com/forgeup/forgeup/internal/platform"
)

func withTargets(t *testing.T, tt []string) {
	t.Helper()
	old := targets
	targets = tt
	t.Cleanup(func() { targets = old })
}

func TestParseComponents(t *testing.T) {
	withTargets(t, []string{"xtensa-esp32-none-elf", "riscv32imc-unknown-none-elf"})

	tests := []struct {
		name    string
		args    []string
		want    []catalog.Component
		wantErr bool
	}{
		{
			name: "single targeted component",
			args: []string{"toolchain"},
			want: []catalog.Component{
				{Name: catalog.Toolchain, Target: "xtensa-esp32-none-elf"},
				{Name: catalog.Toolchain, Target: "riscv32imc-unknown-none-elf"},
			},
		},
		{
			name: "pinned version",
			args: []string{"toolchain@1.73.0.1"},
			want: []catalog.Component{
				{Name: catalog.Toolchain, Version: "1.73.0.1", Target: "xtensa-esp32-none-elf"},
				{Name: catalog.Toolchain, Version: "1.73.0.1", Target: "riscv32imc-unknown-none-elf"},
			},
		},
		{
			name: "build tool ignores targets",
			args: []string{"build-tool"},
			want: []catalog.Component{
				{Name: catalog.BuildTool},
			},
		},
		{
			name:    "unknown component",
			args:    []string{"kernel"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseComponents(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseComponents() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseComponents() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseComponents()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseComponentsDefaultsToAll(t *testing.T) {
	withTargets(t, []string{"xtensa-esp32-none-elf"})

	got, err := parseComponents(nil)
	if err != nil {
		t.Fatalf("parseComponents(nil) error = %v", err)
	}
	// Four targeted components on one target plus the build tool.
	if len(got) != 5 {
		t.Errorf("parseComponents(nil) returned %d components, want 5", len(got))
	}
}

func TestResolveRoot(t *testing.T) {
	old := rootDir
	t.Cleanup(func() { rootDir = old })

	rootDir = "/explicit/root"
	if got, err := resolveRoot(); err != nil || got != "/explicit/root" {
		t.Errorf("resolveRoot() = %q, %v, want flag value", got, err)
	}

	rootDir = ""
	t.Setenv("FORGEUP_HOME", "/from/env")
	if got, err := resolveRoot(); err != nil || got != "/from/env" {
		t.Errorf("resolveRoot() = %q, %v, want FORGEUP_HOME", got, err)
	}

	t.Setenv("FORGEUP_HOME", "")
	got, err := resolveRoot()
	if err != nil {
		t.Fatalf("resolveRoot() error = %v", err)
	}
	if filepath.Base(got) != ".forgeup" {
		t.Errorf("resolveRoot() = %q, want a ~/.forgeup default", got)
	}
}

type countingDetector struct {
	calls int
}

func (d *countingDetector) Detect(ctx context.Context) (*platform.Host, error) {
	d.calls++
	return &platform.Host{
		OS:         "linux",
		Arch:       "amd64",
		Triple:     platform.TripleLinuxAMD64,
		Convention: platform.EnvExportFile,
	}, nil
}

func TestListDetectsHostOnce(t *testing.T) {
	oldDetector, oldRoot := detector, rootDir
	t.Cleanup(func() { detector, rootDir = oldDetector, oldRoot })

	fake := &countingDetector{}
	detector = fake
	rootDir = t.TempDir()

	if err := listCmd.RunE(listCmd, nil); err != nil {
		t.Fatalf("list error = %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("host detected %d times, want 1", fake.calls)
	}
}

func TestSummaryExit(t *testing.T) {
	tests := []struct {
		name     string
		sum      installer.Summary
		total    int
		wantCode int
	}{
		{name: "all ok", sum: installer.Summary{Succeeded: 3}, total: 3, wantCode: ExitOK},
		{name: "all failed", sum: installer.Summary{Failed: 2}, total: 2, wantCode: ExitFailure},
		{name: "partial", sum: installer.Summary{Succeeded: 1, Failed: 1}, total: 2, wantCode: ExitPartial},
		{name: "persist failure wins", sum: installer.Summary{Succeeded: 1, Failed: 1, PersistFailed: true}, total: 2, wantCode: ExitPersistFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := summaryExit(tt.sum, tt.total)
			if tt.wantCode == ExitOK {
				if err != nil {
					t.Fatalf("summaryExit() = %v, want nil", err)
				}
				return
			}
			var ee *exitError
			if !errors.As(err, &ee) {
				t.Fatalf("summaryExit() = %v, want exitError", err)
			}
			if ee.code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", ee.code, tt.wantCode)
			}
		})
	}
}
