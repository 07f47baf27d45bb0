package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// ValidationLevel selects how much of a backup set a check inspects
type ValidationLevel string

const (
	// ValidationStructural checks the directory layout, the manifest and
	// the presence and size of every recorded ISO.
	ValidationStructural ValidationLevel = "structural"
	// ValidationDeep additionally opens every ISO, parses its embedded
	// metadata and verifies the manifest signatures.
	ValidationDeep ValidationLevel = "deep"
	// ValidationCompleteness checks the component flags against what the
	// backup type requires.
	ValidationCompleteness ValidationLevel = "completeness"
)

// ValidationResult is one validation run, appended to the backup record
type ValidationResult struct {
	Level       ValidationLevel `json:"level"`
	Valid       bool            `json:"valid"`
	CheckedAt   time.Time       `json:"checked_at"`
	Problems    []string        `json:"problems,omitempty"`
	IsosChecked int             `json:"isos_checked"`
}

// Validator inspects completed backup sets on disk
type Validator struct {
	isoManager *IsoManager
	logger     zerolog.Logger

	Now func() time.Time
}

// NewValidator creates a backup validator
func NewValidator() *Validator {
	return &Validator{
		isoManager: NewIsoManager(),
		logger:     log.WithComponent("backup-validator"),
		Now:        time.Now,
	}
}

// Validate runs one validation pass at the requested level, appends the
// result to the record's metadata and stamps last_validated_at. The
// returned result describes the outcome; the error return is reserved
// for the validator itself being unable to run.
func (v *Validator) Validate(ctx context.Context, b *models.Backup, level ValidationLevel) (*ValidationResult, error) {
	result := &ValidationResult{
		Level:     level,
		CheckedAt: v.Now().UTC(),
	}

	switch level {
	case ValidationStructural:
		v.checkStructure(b, result)
	case ValidationDeep:
		v.checkStructure(b, result)
		if len(result.Problems) == 0 {
			v.checkDeep(b, result)
		}
	case ValidationCompleteness:
		v.checkCompleteness(b, result)
	default:
		return nil, fmt.Errorf("unknown validation level %q", level)
	}

	result.Valid = len(result.Problems) == 0
	v.record(b, result)

	lg := log.WithBackupID(v.logger, b.ID)
	lg.Info().
		Str("level", string(level)).
		Bool("valid", result.Valid).
		Int("problems", len(result.Problems)).
		Msg("backup validated")

	return result, nil
}

func (v *Validator) checkStructure(b *models.Backup, result *ValidationResult) {
	if b.StorageLocation == "" {
		result.Problems = append(result.Problems, "backup has no storage location")
		return
	}
	if info, err := os.Stat(b.StorageLocation); err != nil || !info.IsDir() {
		result.Problems = append(result.Problems, fmt.Sprintf("backup directory %s is missing", b.StorageLocation))
		return
	}

	manifestPath := b.ManifestPath
	if manifestPath == "" {
		manifestPath = filepath.Join(b.StorageLocation, "metadata", "manifest.json")
	}
	manifest, err := ParseManifest(manifestPath)
	if err != nil {
		result.Problems = append(result.Problems, err.Error())
		return
	}
	if manifest.BackupID != b.ID {
		result.Problems = append(result.Problems,
			fmt.Sprintf("manifest belongs to backup %d, not %d", manifest.BackupID, b.ID))
	}

	descs := isoDescriptors(b)
	if len(descs) == 0 {
		result.Problems = append(result.Problems, "backup records no iso files")
		return
	}
	for _, desc := range descs {
		info, err := os.Stat(desc.Path)
		if err != nil {
			result.Problems = append(result.Problems, fmt.Sprintf("iso %s is missing", desc.Path))
			continue
		}
		if desc.SizeBytes > 0 && info.Size() != desc.SizeBytes {
			result.Problems = append(result.Problems,
				fmt.Sprintf("iso %s is %d bytes, expected %d", desc.Path, info.Size(), desc.SizeBytes))
		}
		result.IsosChecked++
	}
}

func (v *Validator) checkDeep(b *models.Backup, result *ValidationResult) {
	for _, desc := range isoDescriptors(b) {
		meta, err := v.isoManager.ReadIsoMetadata(desc.Path)
		if err != nil {
			result.Problems = append(result.Problems, err.Error())
			continue
		}
		if meta.ComponentType != "" && meta.ComponentType != string(desc.Component) {
			result.Problems = append(result.Problems,
				fmt.Sprintf("iso %s carries component %s, index says %s", desc.Path, meta.ComponentType, desc.Component))
		}
	}

	sigDir := filepath.Join(b.StorageLocation, "metadata", "digital_signature")
	for src, sig := range map[string]string{
		filepath.Join(b.StorageLocation, "metadata", "manifest.json"):    filepath.Join(sigDir, "manifest.sig"),
		filepath.Join(b.StorageLocation, "metadata", "backup_info.yaml"): filepath.Join(sigDir, "backup_info.sig"),
	} {
		if err := verifySignature(src, sig); err != nil {
			result.Problems = append(result.Problems, err.Error())
		}
	}
}

func (v *Validator) checkCompleteness(b *models.Backup, result *ValidationResult) {
	if b.Status != models.BackupStatusSuccess {
		result.Problems = append(result.Problems,
			fmt.Sprintf("backup status is %s, only successful backups can be complete", b.Status))
		return
	}
	for _, component := range b.RequiredComponents() {
		if !b.HasComponent(component) {
			result.Problems = append(result.Problems,
				fmt.Sprintf("%s backup is missing component %s", b.BackupType, component))
		}
	}
}

// record appends the result to metadata.validations and stamps the record
func (v *Validator) record(b *models.Backup, result *ValidationResult) {
	if b.Metadata == nil {
		b.Metadata = models.JSONMap{}
	}
	var history []interface{}
	if prev, ok := b.Metadata["validations"].([]interface{}); ok {
		history = prev
	}
	b.Metadata["validations"] = append(history, result)

	at := result.CheckedAt
	b.LastValidatedAt = &at
}

func verifySignature(srcPath, sigPath string) error {
	want, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("signature %s is missing", sigPath)
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("signed file %s is missing", srcPath)
	}
	sum := sha256.Sum256(data)
	if strings.TrimSpace(string(want)) != hex.EncodeToString(sum[:]) {
		return fmt.Errorf("signature mismatch for %s", srcPath)
	}
	return nil
}
