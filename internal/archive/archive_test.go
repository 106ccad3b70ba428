package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"

	"github.com/forgeup/forgeup/internal/catalog"
)

type entry struct {
	name string
	body string
	mode os.FileMode
	link string
	hard bool
}

func writeTarArchive(t *testing.T, path string, format catalog.Format, entries []entry) {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: int64(e.mode)}
		switch {
		case e.hard:
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = e.link
		case e.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if e.link == "" {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("write body: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	switch format {
	case catalog.FormatTarGz:
		gz := pgzip.NewWriter(f)
		if _, err := gz.Write(buf.Bytes()); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
		if err := gz.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
	case catalog.FormatTarXz:
		xw, err := xz.NewWriter(f)
		if err != nil {
			t.Fatalf("xz writer: %v", err)
		}
		if _, err := xw.Write(buf.Bytes()); err != nil {
			t.Fatalf("xz write: %v", err)
		}
		if err := xw.Close(); err != nil {
			t.Fatalf("xz close: %v", err)
		}
	default:
		t.Fatalf("unexpected format %q", format)
	}
}

func writeZipArchive(t *testing.T, path string, entries []entry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		hdr.SetMode(e.mode)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func tarEntries() []entry {
	return []entry{
		{name: "bin/rustc", body: "#!/bin/sh\necho rustc\n", mode: 0755},
		{name: "lib/libstd.rlib", body: "rlib-bytes", mode: 0644},
		{name: "share/doc/README", body: "docs", mode: 0644},
	}
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "toolchain.tar.gz")
	writeTarArchive(t, archivePath, catalog.FormatTarGz, tarEntries())

	dest := filepath.Join(dir, "toolchain-1.2.0.0")
	paths, err := Extract(context.Background(), archivePath, catalog.FormatTarGz, dest)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := []string{"bin/rustc", "lib/libstd.rlib", "share/doc/README"}
	if len(paths) != len(want) {
		t.Fatalf("Extract() paths = %v, want %v", paths, want)
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], p)
		}
	}

	body, err := os.ReadFile(filepath.Join(dest, "lib", "libstd.rlib"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(body) != "rlib-bytes" {
		t.Errorf("extracted content = %q, want %q", body, "rlib-bytes")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dest, "bin", "rustc"))
		if err != nil {
			t.Fatalf("stat binary: %v", err)
		}
		if info.Mode().Perm()&0100 == 0 {
			t.Errorf("bin/rustc mode = %v, want executable bit set", info.Mode())
		}
	}
}

func TestExtractTarXz(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "toolchain.tar.xz")
	writeTarArchive(t, archivePath, catalog.FormatTarXz, tarEntries())

	dest := filepath.Join(dir, "out")
	paths, err := Extract(context.Background(), archivePath, catalog.FormatTarXz, dest)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("Extract() returned %d paths, want 3", len(paths))
	}
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "toolchain.zip")
	writeZipArchive(t, archivePath, []entry{
		{name: "bin/rustc.exe", body: "MZ-stub", mode: 0755},
		{name: "lib/core.rlib", body: "core", mode: 0644},
	})

	dest := filepath.Join(dir, "out")
	paths, err := Extract(context.Background(), archivePath, catalog.FormatZip, dest)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Extract() returned %d paths, want 2", len(paths))
	}
	if paths[0] != "bin/rustc.exe" {
		t.Errorf("paths[0] = %q, want %q", paths[0], "bin/rustc.exe")
	}
}

func TestExtractSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "toolchain.tar.gz")
	writeTarArchive(t, archivePath, catalog.FormatTarGz, []entry{
		{name: "bin/rustc", body: "real", mode: 0755},
		{name: "bin/cargo", link: "rustc", mode: 0777},
	})

	dest := filepath.Join(dir, "out")
	if _, err := Extract(context.Background(), archivePath, catalog.FormatTarGz, dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	target, err := os.Readlink(filepath.Join(dest, "bin", "cargo"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != "rustc" {
		t.Errorf("symlink target = %q, want %q", target, "rustc")
	}
}

func TestExtractZipSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "toolchain.zip")
	writeZipArchive(t, archivePath, []entry{
		{name: "bin/rustc", body: "real", mode: 0755},
		{name: "bin/cargo", body: "rustc", mode: 0777 | os.ModeSymlink},
	})

	dest := filepath.Join(dir, "out")
	if _, err := Extract(context.Background(), archivePath, catalog.FormatZip, dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	target, err := os.Readlink(filepath.Join(dest, "bin", "cargo"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != "rustc" {
		t.Errorf("symlink target = %q, want %q", target, "rustc")
	}
}

func TestExtractRejectsEscapingZipSymlink(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")
	writeZipArchive(t, archivePath, []entry{
		{name: "bin/escape", body: "../../../etc/passwd", mode: 0777 | os.ModeSymlink},
	})

	dest := filepath.Join(dir, "out")
	_, err := Extract(context.Background(), archivePath, catalog.FormatZip, dest)

	var unsafeErr *UnsafeEntryError
	if !errors.As(err, &unsafeErr) {
		t.Fatalf("Extract() error = %v, want UnsafeEntryError", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination exists after failed extraction")
	}
}

func TestExtractTarHardLink(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "toolchain.tar.gz")
	writeTarArchive(t, archivePath, catalog.FormatTarGz, []entry{
		{name: "bin/rustc", body: "real", mode: 0755},
		{name: "bin/rustc-wrapper", link: "bin/rustc", hard: true, mode: 0755},
	})

	dest := filepath.Join(dir, "out")
	paths, err := Extract(context.Background(), archivePath, catalog.FormatTarGz, dest)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	body, err := os.ReadFile(filepath.Join(dest, "bin", "rustc-wrapper"))
	if err != nil {
		t.Fatalf("read hard link: %v", err)
	}
	if string(body) != "real" {
		t.Errorf("hard link content = %q, want %q", body, "real")
	}

	found := false
	for _, p := range paths {
		if p == "bin/rustc-wrapper" {
			found = true
		}
	}
	if !found {
		t.Errorf("hard link missing from extracted paths: %v", paths)
	}
}

func TestExtractRejectsEscapingTarHardLink(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	writeTarArchive(t, archivePath, catalog.FormatTarGz, []entry{
		{name: "bin/escape", link: "../../etc/shadow", hard: true, mode: 0644},
	})

	dest := filepath.Join(dir, "out")
	_, err := Extract(context.Background(), archivePath, catalog.FormatTarGz, dest)

	var unsafeErr *UnsafeEntryError
	if !errors.As(err, &unsafeErr) {
		t.Fatalf("Extract() error = %v, want UnsafeEntryError", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination exists after failed extraction")
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	evil := []entry{
		{name: "bin/ok", body: "fine", mode: 0644},
		{name: "../../evil", body: "payload", mode: 0644},
	}

	formats := []catalog.Format{catalog.FormatTarGz, catalog.FormatTarXz, catalog.FormatZip}
	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			archivePath := filepath.Join(dir, "evil."+string(format))
			if format == catalog.FormatZip {
				writeZipArchive(t, archivePath, evil)
			} else {
				writeTarArchive(t, archivePath, format, evil)
			}

			dest := filepath.Join(dir, "out")
			_, err := Extract(context.Background(), archivePath, format, dest)

			var unsafeErr *UnsafeEntryError
			if !errors.As(err, &unsafeErr) {
				t.Fatalf("Extract() error = %v, want UnsafeEntryError", err)
			}
			if unsafeErr.Name != "../../evil" {
				t.Errorf("UnsafeEntryError.Name = %q, want %q", unsafeErr.Name, "../../evil")
			}

			if _, err := os.Stat(dest); !os.IsNotExist(err) {
				t.Errorf("destination exists after failed extraction")
			}
			if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "evil")); !os.IsNotExist(err) {
				t.Errorf("traversal payload was written outside destination")
			}
		})
	}
}

func TestExtractRejectsAbsoluteZipEntry(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")
	writeZipArchive(t, archivePath, []entry{
		{name: "/etc/evil", body: "payload", mode: 0644},
	})

	dest := filepath.Join(dir, "out")
	_, err := Extract(context.Background(), archivePath, catalog.FormatZip, dest)

	var unsafeErr *UnsafeEntryError
	if !errors.As(err, &unsafeErr) {
		t.Fatalf("Extract() error = %v, want UnsafeEntryError", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination exists after failed extraction")
	}
}

func TestExtractRejectsEscapingSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	writeTarArchive(t, archivePath, catalog.FormatTarGz, []entry{
		{name: "bin/escape", link: "../../../etc/passwd", mode: 0777},
	})

	dest := filepath.Join(dir, "out")
	_, err := Extract(context.Background(), archivePath, catalog.FormatTarGz, dest)

	var unsafeErr *UnsafeEntryError
	if !errors.As(err, &unsafeErr) {
		t.Fatalf("Extract() error = %v, want UnsafeEntryError", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination exists after failed extraction")
	}
}

func TestExtractCorruptArchiveLeavesNoDestination(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "corrupt.tar.gz")
	if err := os.WriteFile(archivePath, []byte("not a gzip stream"), 0644); err != nil {
		t.Fatalf("write corrupt archive: %v", err)
	}

	dest := filepath.Join(dir, "out")
	_, err := Extract(context.Background(), archivePath, catalog.FormatTarGz, dest)

	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("Extract() error = %v, want ExtractionError", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination exists after failed extraction")
	}
}

func TestExtractRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "toolchain.tar.gz")
	writeTarArchive(t, archivePath, catalog.FormatTarGz, tarEntries())

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatalf("mkdir dest: %v", err)
	}

	if _, err := Extract(context.Background(), archivePath, catalog.FormatTarGz, dest); err == nil {
		t.Fatal("Extract() succeeded into an existing destination")
	}
}

func TestExtractCancelled(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "toolchain.tar.gz")
	writeTarArchive(t, archivePath, catalog.FormatTarGz, tarEntries())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(dir, "out")
	_, err := Extract(ctx, archivePath, catalog.FormatTarGz, dest)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract() error = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination exists after cancelled extraction")
	}
}

func TestExtractUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "blob")
	if err := os.WriteFile(archivePath, []byte("data"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := Extract(context.Background(), archivePath, catalog.Format("rar"), filepath.Join(dir, "out")); err == nil {
		t.Fatal("Extract() accepted an unknown format")
	}
}
