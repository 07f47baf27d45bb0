package backup

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIsoRoundTrip tests create, inspect and extract of one artifact
func TestIsoRoundTrip(t *testing.T) {
	m := NewIsoManager()

	srcDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "conf"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "conf", "app.yaml"), []byte("name: billing\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "state.json"), []byte(`{"ok":true}`), 0644))

	isoPath := filepath.Join(t.TempDir(), "billing.iso")
	require.NoError(t, m.CreateIsoFromDirectory(srcDir, isoPath, "billing-backup", "none"))

	size, err := m.IsoSize(isoPath)
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))

	meta, err := m.ReadIsoMetadata(isoPath)
	require.NoError(t, err)
	assert.Equal(t, "billing-backup", meta.Label)
	assert.Equal(t, "none", meta.Encryption)
	assert.Equal(t, 2, meta.Files)

	outDir := t.TempDir()
	require.NoError(t, m.ExtractIsoToDirectory(isoPath, outDir))

	data, err := os.ReadFile(filepath.Join(outDir, "data", "conf", "app.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "name: billing\n", string(data))
	assert.FileExists(t, filepath.Join(outDir, "data", "state.json"))
	assert.FileExists(t, filepath.Join(outDir, "metadata", "manifest.json"))
	assert.DirExists(t, filepath.Join(outDir, "scripts", "recovery"))
}

// TestExtractRejectsPathEscape tests the traversal guard
func TestExtractRejectsPathEscape(t *testing.T) {
	isoPath := filepath.Join(t.TempDir(), "evil.iso")
	f, err := os.Create(isoPath)
	require.NoError(t, err)
	tw := tar.NewWriter(f)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../evil.txt", Size: 4, Mode: 0644}))
	_, err = tw.Write([]byte("boom"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())

	m := NewIsoManager()
	err = m.ExtractIsoToDirectory(isoPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escaping extraction root")
}

// TestReadIsoMetadataMissing tests an artifact without embedded metadata
func TestReadIsoMetadataMissing(t *testing.T) {
	isoPath := filepath.Join(t.TempDir(), "bare.iso")
	f, err := os.Create(isoPath)
	require.NoError(t, err)
	tw := tar.NewWriter(f)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "data/file", Size: 2, Mode: 0644}))
	_, err = tw.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())

	m := NewIsoManager()
	_, err = m.ReadIsoMetadata(isoPath)
	require.Error(t, err)
}

// TestIsoSizeMissingFile tests the stat failure path
func TestIsoSizeMissingFile(t *testing.T) {
	m := NewIsoManager()
	_, err := m.IsoSize(filepath.Join(t.TempDir(), "nope.iso"))
	require.Error(t, err)
}
