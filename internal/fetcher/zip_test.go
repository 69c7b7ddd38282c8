package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIPSingle(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"DDW_PCA0000.csv": "State name,District name\n"})
	dest := filepath.Join(t.TempDir(), "data", "districts.csv")

	require.NoError(t, ExtractZIPSingle(zipPath, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "State name,District name\n", string(data))
}

func TestExtractZIPSingle_MultipleFiles(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"a.csv": "a", "b.csv": "b"})

	err := ExtractZIPSingle(zipPath, filepath.Join(t.TempDir(), "out.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected exactly 1 file")
}

func TestExtractZIPFile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"hlpca/hlpca-full.csv":     "x",
		"hlpca/hlpca-colnames.csv": "code,description",
	})
	dest := filepath.Join(t.TempDir(), "mapping.csv")

	require.NoError(t, ExtractZIPFile(zipPath, "hlpca-colnames.csv", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "code,description", string(data))

	assert.Error(t, ExtractZIPFile(zipPath, "missing.csv", dest))
}

func TestExtractZIP_IllegalPath(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../escape.csv": "x"})

	err := ExtractZIPSingle(zipPath, filepath.Join(t.TempDir(), "out.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal path")
}

func TestExtractZIP_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	assert.Error(t, ExtractZIPSingle(path, filepath.Join(t.TempDir(), "out.csv")))
}

func TestIsZIP(t *testing.T) {
	assert.True(t, IsZIP("hlpca.ZIP"))
	assert.False(t, IsZIP("districts.csv"))
}
