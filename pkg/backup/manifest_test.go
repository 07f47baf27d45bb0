package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// buildBackupSet materialises a small but structurally complete backup
// set on disk: real ISO artifacts, descriptors in metadata and the full
// manifest set. Shared by the manifest and validator tests.
func buildBackupSet(t *testing.T) *models.Backup {
	t.Helper()
	m := NewIsoManager()

	backupDir := filepath.Join(t.TempDir(), "backup-20250301-090000")
	isoDir := filepath.Join(backupDir, "isos")
	require.NoError(t, os.MkdirAll(isoDir, 0755))

	b := &models.Backup{
		ID:                11,
		Name:              "weekly",
		Status:            models.BackupStatusSuccess,
		CreatedAt:         time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		BackupType:        models.BackupTypeFull,
		SourceEnvironment: "prod",
		FormatVersion:     "1.0",
		StorageLocation:   backupDir,
		Metadata:          models.JSONMap{},
	}

	var descs []IsoDescriptor
	var total int64
	for i, ct := range b.RequiredComponents() {
		srcDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, "payload.txt"),
			[]byte(fmt.Sprintf("payload for %s\n", ct)), 0644))

		isoPath := filepath.Join(isoDir, fmt.Sprintf("%s-node-%d-11.iso", ct, i))
		require.NoError(t, m.CreateIsoFromDirectory(srcDir, isoPath, string(ct), "none"))

		size, err := m.IsoSize(isoPath)
		require.NoError(t, err)
		total += size

		b.SetComponent(ct)
		descs = append(descs, IsoDescriptor{
			Component: ct,
			NodeID:    fmt.Sprintf("node-%d", i),
			Path:      isoPath,
			SizeBytes: size,
		})
	}
	b.Metadata["iso_files"] = descs
	b.SizeBytes = total

	manifestPath, err := m.CreateBackupManifest(b, backupDir)
	require.NoError(t, err)
	b.ManifestPath = manifestPath
	return b
}

// TestManifestRoundTrip tests that the written manifest set parses back
// and every sibling artifact is in place.
func TestManifestRoundTrip(t *testing.T) {
	b := buildBackupSet(t)

	manifest, err := ParseManifest(b.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, int64(11), manifest.BackupID)
	assert.Equal(t, "weekly", manifest.BackupName)
	assert.Equal(t, models.BackupTypeFull, manifest.BackupType)
	assert.Equal(t, "prod", manifest.SourceEnvironment)
	assert.Equal(t, b.SizeBytes, manifest.SizeBytes)
	assert.True(t, manifest.Components.SystemCore)
	assert.True(t, manifest.Components.VolumeData)

	metaDir := filepath.Join(b.StorageLocation, "metadata")
	assert.FileExists(t, filepath.Join(metaDir, "backup_info.yaml"))
	assert.FileExists(t, filepath.Join(b.StorageLocation, "scripts", "recovery", "main.sh"))
	assert.FileExists(t, filepath.Join(b.StorageLocation, "scripts", "validation", "validate.sh"))
	assert.FileExists(t, filepath.Join(b.StorageLocation, "scripts", "transformation", "transform.sh"))

	// The signatures check out against the files they sign.
	sigDir := filepath.Join(metaDir, "digital_signature")
	require.NoError(t, verifySignature(filepath.Join(metaDir, "manifest.json"), filepath.Join(sigDir, "manifest.sig")))
	require.NoError(t, verifySignature(filepath.Join(metaDir, "backup_info.yaml"), filepath.Join(sigDir, "backup_info.sig")))
}

// TestRecoveryIndexContents tests the bolt component index
func TestRecoveryIndexContents(t *testing.T) {
	b := buildBackupSet(t)
	descs := isoDescriptors(b)
	require.Len(t, descs, 6)

	db, err := bolt.Open(filepath.Join(b.StorageLocation, "metadata", "recovery_index.db"),
		0600, &bolt.Options{ReadOnly: true})
	require.NoError(t, err)
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		components := tx.Bucket([]byte("components"))
		require.NotNil(t, components)
		for _, desc := range descs {
			key := fmt.Sprintf("%s/%s", desc.Component, desc.NodeID)
			assert.NotNil(t, components.Get([]byte(key)), "missing index entry %s", key)
		}

		isos := tx.Bucket([]byte("isos"))
		require.NotNil(t, isos)
		assert.Equal(t, len(descs), isos.Stats().KeyN)
		return nil
	})
	require.NoError(t, err)
}

// TestParseManifestCorrupt tests rejection of a damaged manifest
func TestParseManifestCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := ParseManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt manifest")
}
