package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMetadataFile(t *testing.T) {
	content := `components:
  - name: toolchain
    targets:
      - xtensa-esp32-none-elf
    versions:
      - version: 1.2.0.0
        artifacts:
          - host: x86_64-unknown-linux-gnu
            url: https://mirror.example.com/toolchain-1.2.0.0.tar.xz
            format: tar.xz
            checksum: sha256:0123abcd
            size: 4096
  - name: build-tool
    versions:
      - version: 2.0.0
        artifacts:
          - host: x86_64-unknown-linux-gnu
            url: https://mirror.example.com/build-tool-2.0.0.tar.gz
            format: tar.gz
`

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	meta, err := LoadMetadataFile(path)
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}

	if len(meta.Components) != 2 {
		t.Fatalf("components: got %d, want 2", len(meta.Components))
	}

	tc := meta.Components[0]
	if tc.Name != "toolchain" {
		t.Errorf("name: got %q", tc.Name)
	}
	if len(tc.Targets) != 1 || tc.Targets[0] != "xtensa-esp32-none-elf" {
		t.Errorf("targets: got %v", tc.Targets)
	}
	art := tc.Versions[0].Artifacts[0]
	if art.Checksum != "sha256:0123abcd" {
		t.Errorf("checksum: got %q", art.Checksum)
	}
	if art.Size != 4096 {
		t.Errorf("size: got %d", art.Size)
	}

	// The loaded metadata must build into a working catalog.
	if _, err := New(meta); err != nil {
		t.Errorf("loaded metadata rejected by New: %v", err)
	}
}

func TestLoadMetadataFileErrors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		if _, err := LoadMetadataFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("components: [:::"), 0644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		if _, err := LoadMetadataFile(path); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})

	t.Run("empty_components", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, []byte("components: []"), 0644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		if _, err := LoadMetadataFile(path); err == nil {
			t.Error("expected error for empty component list")
		}
	})
}
