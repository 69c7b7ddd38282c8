package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIPSingle writes the only file in a ZIP archive to dest. Census
// tables are published one per archive; any other layout is an error.
func ExtractZIPSingle(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var files []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}
	if len(files) != 1 {
		return eris.Errorf("zip: expected exactly 1 file in %s, got %d", filepath.Base(zipPath), len(files))
	}
	return extractEntry(files[0], dest)
}

// ExtractZIPFile writes the archive member called name to dest.
func ExtractZIPFile(zipPath, name, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.Name == name || filepath.Base(f.Name) == name {
			return extractEntry(f, dest)
		}
	}
	return eris.Errorf("zip: file %q not found in archive", name)
}

func extractEntry(f *zip.File, dest string) error {
	if strings.Contains(f.Name, "..") {
		return eris.Errorf("zip: illegal path %q", f.Name)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	if _, err := WriteFileAtomic(dest, rc); err != nil {
		return eris.Wrapf(err, "zip: extract %s", f.Name)
	}
	return nil
}

// IsZIP reports whether name looks like a ZIP archive.
func IsZIP(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}
