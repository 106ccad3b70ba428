// Package archive unpacks staged artifacts into install directories.
//
// The container format comes from the catalog, never from sniffing the
// file. Extraction is atomic from the caller's perspective: entries are
// streamed into a temporary sibling of the destination which is renamed
// into place only when the whole archive has been written, so the
// destination either ends up fully populated or stays absent.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"

	"github.com/forgeup/forgeup/internal/catalog"
)

// UnsafeEntryError indicates an archive entry whose normalized path would
// escape the destination directory.
type UnsafeEntryError struct {
	Name string
}

func (e *UnsafeEntryError) Error() string {
	return fmt.Sprintf("unsafe archive entry: %s", e.Name)
}

// ExtractionError wraps any other failure while unpacking an archive.
type ExtractionError struct {
	Archive string
	Cause   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (%s): %v", e.Archive, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Extract unpacks archivePath into dest and returns the sorted relative
// paths of the extracted files. dest must not exist; on any failure the
// partially written work directory is removed and dest is left absent.
//
// Cancellation is observed between entries, never mid-file, so no
// truncated binary is ever visible under dest.
func Extract(ctx context.Context, archivePath string, format catalog.Format, dest string) ([]string, error) {
	if _, err := os.Stat(dest); err == nil {
		return nil, &ExtractionError{Archive: archivePath, Cause: fmt.Errorf("destination %s already exists", dest)}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, &ExtractionError{Archive: archivePath, Cause: err}
	}

	workDir, err := os.MkdirTemp(filepath.Dir(dest), filepath.Base(dest)+".partial-*")
	if err != nil {
		return nil, &ExtractionError{Archive: archivePath, Cause: err}
	}

	paths, err := extractInto(ctx, archivePath, format, workDir)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	if err := os.Rename(workDir, dest); err != nil {
		os.RemoveAll(workDir)
		return nil, &ExtractionError{Archive: archivePath, Cause: err}
	}

	sort.Strings(paths)
	return paths, nil
}

// extractInto dispatches on the closed format set.
func extractInto(ctx context.Context, archivePath string, format catalog.Format, workDir string) ([]string, error) {
	switch format {
	case catalog.FormatZip:
		return extractZip(ctx, archivePath, workDir)
	case catalog.FormatTarGz, catalog.FormatTarXz:
		return extractTar(ctx, archivePath, format, workDir)
	default:
		return nil, &ExtractionError{Archive: archivePath, Cause: fmt.Errorf("unsupported archive format %q", format)}
	}
}

// extractTar streams a compressed tar archive into workDir.
func extractTar(ctx context.Context, archivePath string, format catalog.Format, workDir string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, &ExtractionError{Archive: archivePath, Cause: err}
	}
	defer f.Close()

	var r io.Reader
	switch format {
	case catalog.FormatTarGz:
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, &ExtractionError{Archive: archivePath, Cause: fmt.Errorf("gzip reader: %w", err)}
		}
		defer gz.Close()
		r = gz
	case catalog.FormatTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, &ExtractionError{Archive: archivePath, Cause: fmt.Errorf("xz reader: %w", err)}
		}
		r = xr
	}

	var paths []string
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return nil, &ExtractionError{Archive: archivePath, Cause: err}
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ExtractionError{Archive: archivePath, Cause: fmt.Errorf("read tar header: %w", err)}
		}

		// PAX metadata entries carry no file content.
		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, err := safeJoin(workDir, hdr.Name)
		if err != nil {
			return nil, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(hdr.FileInfo().Mode())); err != nil {
				return nil, &ExtractionError{Archive: archivePath, Cause: err}
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, &ExtractionError{Archive: archivePath, Cause: err}
			}
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return nil, &ExtractionError{Archive: archivePath, Cause: err}
			}
			paths = append(paths, filepath.ToSlash(strings.TrimPrefix(target, workDir+string(os.PathSeparator))))

		case tar.TypeSymlink:
			if err := checkLinkTarget(hdr.Name, hdr.Linkname); err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, &ExtractionError{Archive: archivePath, Cause: err}
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return nil, &ExtractionError{Archive: archivePath, Cause: err}
			}

		case tar.TypeLink:
			// Hard-link targets are named relative to the archive root and
			// always precede their links in well-formed tarballs.
			src, err := safeJoin(workDir, hdr.Linkname)
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, &ExtractionError{Archive: archivePath, Cause: err}
			}
			if err := os.Link(src, target); err != nil {
				return nil, &ExtractionError{Archive: archivePath, Cause: err}
			}
			paths = append(paths, filepath.ToSlash(strings.TrimPrefix(target, workDir+string(os.PathSeparator))))

		default:
			// Devices, FIFOs and the like have no business in a toolchain
			// distribution.
			continue
		}
	}

	return paths, nil
}

// extractZip unpacks a zip archive into workDir.
func extractZip(ctx context.Context, archivePath, workDir string) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, &ExtractionError{Archive: archivePath, Cause: fmt.Errorf("open zip: %w", err)}
	}
	defer zr.Close()

	var paths []string
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, &ExtractionError{Archive: archivePath, Cause: err}
		}

		target, err := safeJoin(workDir, f.Name)
		if err != nil {
			return nil, err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, dirMode(f.Mode())); err != nil {
				return nil, &ExtractionError{Archive: archivePath, Cause: err}
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, &ExtractionError{Archive: archivePath, Cause: err}
		}

		// Symlink entries store the link target as their content.
		if f.Mode()&os.ModeSymlink != 0 {
			if err := writeZipSymlink(f, target); err != nil {
				return nil, err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, &ExtractionError{Archive: archivePath, Cause: err}
		}
		err = writeFile(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return nil, &ExtractionError{Archive: archivePath, Cause: err}
		}

		paths = append(paths, filepath.ToSlash(strings.TrimPrefix(target, workDir+string(os.PathSeparator))))
	}

	return paths, nil
}

// writeZipSymlink materializes a zip symlink entry, applying the same
// escape guard as the tar path.
func writeZipSymlink(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return &ExtractionError{Archive: f.Name, Cause: err}
	}
	linkname, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return &ExtractionError{Archive: f.Name, Cause: err}
	}
	if err := checkLinkTarget(f.Name, string(linkname)); err != nil {
		return err
	}
	if err := os.Symlink(string(linkname), target); err != nil {
		return &ExtractionError{Archive: f.Name, Cause: err}
	}
	return nil
}

// writeFile streams content into target preserving the entry's permission
// bits, which is what keeps extracted binaries executable.
func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// safeJoin joins an archive entry name onto base, rejecting entries whose
// normalized path would escape it.
func safeJoin(base, name string) (string, error) {
	target := filepath.Join(base, filepath.FromSlash(name))
	if target != base && !strings.HasPrefix(target, base+string(os.PathSeparator)) {
		return "", &UnsafeEntryError{Name: name}
	}
	if filepath.IsAbs(filepath.FromSlash(name)) {
		return "", &UnsafeEntryError{Name: name}
	}
	return target, nil
}

// checkLinkTarget rejects symlinks that point outside the extraction root.
func checkLinkTarget(name, linkname string) error {
	if filepath.IsAbs(linkname) {
		return &UnsafeEntryError{Name: name}
	}
	resolved := filepath.Join(filepath.Dir(filepath.FromSlash(name)), filepath.FromSlash(linkname))
	if resolved == ".." || strings.HasPrefix(resolved, ".."+string(os.PathSeparator)) {
		return &UnsafeEntryError{Name: name}
	}
	return nil
}

func dirMode(m os.FileMode) os.FileMode {
	perm := m.Perm()
	if perm == 0 {
		perm = 0755
	}
	// The extracting user must always be able to descend into and fill
	// the directory.
	return perm | 0700
}
