package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// Manifest is the authoritative description of one backup set, written
// as metadata/manifest.json inside the backup directory.
type Manifest struct {
	BackupID          int64                  `json:"backup_id"`
	BackupName        string                 `json:"backup_name"`
	CreatedAt         time.Time              `json:"created_at"`
	CreatedBy         string                 `json:"created_by"`
	BackupType        models.BackupType      `json:"backup_type"`
	SourceEnvironment string                 `json:"source_environment"`
	FormatVersion     string                 `json:"format_version"`
	EncryptionMethod  string                 `json:"encryption_method"`
	EncryptionKeyID   string                 `json:"encryption_key_id"`
	Components        ManifestComponents     `json:"components"`
	IncludedApps      []string               `json:"included_apps"`
	IncludedServices  []string               `json:"included_services"`
	SizeBytes         int64                  `json:"size_bytes"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// ManifestComponents mirrors the six has_* flags of the backup record
type ManifestComponents struct {
	SystemCore     bool `json:"system_core" yaml:"system_core"`
	Directors      bool `json:"directors" yaml:"directors"`
	Orchestrators  bool `json:"orchestrators" yaml:"orchestrators"`
	NetworkConfig  bool `json:"network_config" yaml:"network_config"`
	AppDefinitions bool `json:"app_definitions" yaml:"app_definitions"`
	VolumeData     bool `json:"volume_data" yaml:"volume_data"`
}

// backupInfo is the human-readable YAML summary next to the manifest
type backupInfo struct {
	BackupName  string             `yaml:"backup_name"`
	BackupType  models.BackupType  `yaml:"backup_type"`
	Environment string             `yaml:"environment"`
	CreatedAt   time.Time          `yaml:"created_at"`
	SizeBytes   int64              `yaml:"size_bytes"`
	Components  ManifestComponents `yaml:"components"`
	IsoCount    int                `yaml:"iso_count"`
}

var recoveryIndexBuckets = [][]byte{
	[]byte("components"),
	[]byte("isos"),
}

// CreateBackupManifest assembles the metadata set for a completed
// backup under dir: manifest.json, backup_info.yaml, the recovery
// index, digital signatures and the skeleton recovery scripts. It
// returns the manifest path.
func (m *IsoManager) CreateBackupManifest(b *models.Backup, dir string) (string, error) {
	metaDir := filepath.Join(dir, "metadata")
	sigDir := filepath.Join(metaDir, "digital_signature")
	for _, d := range []string{metaDir, sigDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	manifest := Manifest{
		BackupID:          b.ID,
		BackupName:        b.Name,
		CreatedAt:         b.CreatedAt.UTC(),
		CreatedBy:         "omni-orchestrator",
		BackupType:        b.BackupType,
		SourceEnvironment: b.SourceEnvironment,
		FormatVersion:     b.FormatVersion,
		EncryptionMethod:  b.EncryptionMethod,
		EncryptionKeyID:   "",
		Components: ManifestComponents{
			SystemCore:     b.HasSystemCore,
			Directors:      b.HasDirectors,
			Orchestrators:  b.HasOrchestrators,
			NetworkConfig:  b.HasNetworkConfig,
			AppDefinitions: b.HasAppDefinitions,
			VolumeData:     b.HasVolumeData,
		},
		IncludedApps:     []string(b.IncludedApps),
		IncludedServices: []string(b.IncludedServices),
		SizeBytes:        b.SizeBytes,
		Metadata:         b.Metadata,
	}

	manifestPath := filepath.Join(metaDir, "manifest.json")
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, manifestJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	info := backupInfo{
		BackupName:  b.Name,
		BackupType:  b.BackupType,
		Environment: b.SourceEnvironment,
		CreatedAt:   b.CreatedAt.UTC(),
		SizeBytes:   b.SizeBytes,
		Components:  manifest.Components,
		IsoCount:    len(isoDescriptors(b)),
	}
	infoYAML, err := yaml.Marshal(&info)
	if err != nil {
		return "", fmt.Errorf("failed to encode backup info: %w", err)
	}
	infoPath := filepath.Join(metaDir, "backup_info.yaml")
	if err := os.WriteFile(infoPath, infoYAML, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup info: %w", err)
	}

	if err := writeRecoveryIndex(filepath.Join(metaDir, "recovery_index.db"), b); err != nil {
		return "", err
	}

	for name, path := range map[string]string{
		"manifest.sig":    manifestPath,
		"backup_info.sig": infoPath,
	} {
		if err := writeSignature(path, filepath.Join(sigDir, name)); err != nil {
			return "", err
		}
	}

	if err := writeScriptSkeleton(dir); err != nil {
		return "", err
	}

	return manifestPath, nil
}

// ParseManifest reads a manifest.json back
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corrupt manifest %s: %w", path, err)
	}
	return &m, nil
}

// writeRecoveryIndex records the component → ISO mapping in a small
// bolt database so recovery tooling can look artifacts up without
// parsing the manifest.
func writeRecoveryIndex(path string, b *models.Backup) error {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open recovery index: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range recoveryIndexBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		components := tx.Bucket(recoveryIndexBuckets[0])
		isos := tx.Bucket(recoveryIndexBuckets[1])
		for i, desc := range isoDescriptors(b) {
			data, err := json.Marshal(desc)
			if err != nil {
				return err
			}
			key := fmt.Sprintf("%s/%s", desc.Component, desc.NodeID)
			if err := components.Put([]byte(key), data); err != nil {
				return err
			}
			if err := isos.Put([]byte(fmt.Sprintf("%04d", i)), []byte(desc.Path)); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeSignature(srcPath, sigPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read %s for signing: %w", srcPath, err)
	}
	sum := sha256.Sum256(data)
	if err := os.WriteFile(sigPath, []byte(hex.EncodeToString(sum[:])+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write signature %s: %w", sigPath, err)
	}
	return nil
}

func writeScriptSkeleton(dir string) error {
	scripts := map[string]string{
		"scripts/recovery/main.sh": `#!/bin/sh
# Restores every component ISO of this backup set through the node agents.
# Usage: main.sh <agent-url>
set -e
echo "recovery entry point; see metadata/recovery_index.db for the ISO index"
`,
		"scripts/validation/validate.sh": `#!/bin/sh
# Verifies the manifest signatures and ISO presence of this backup set.
set -e
echo "validation entry point"
`,
		"scripts/transformation/transform.sh": `#!/bin/sh
# Hook for environment-specific rewrites applied before recovery.
set -e
echo "transformation entry point"
`,
	}

	for rel, content := range scripts {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create script dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0755); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

// IsoDescriptor records one produced ISO inside Backup.Metadata
type IsoDescriptor struct {
	Component models.ComponentType `json:"component"`
	NodeID    string               `json:"node_id"`
	Path      string               `json:"path"`
	SizeBytes int64                `json:"size_bytes"`
}

// isoDescriptors decodes metadata.iso_files back into typed descriptors
func isoDescriptors(b *models.Backup) []IsoDescriptor {
	raw, ok := b.Metadata["iso_files"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var descs []IsoDescriptor
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil
	}
	return descs
}
