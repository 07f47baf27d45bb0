package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// TestValidateStructural tests the happy path and the record side effects
func TestValidateStructural(t *testing.T) {
	b := buildBackupSet(t)
	v := NewValidator()
	checked := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	v.Now = func() time.Time { return checked }

	result, err := v.Validate(context.Background(), b, ValidationStructural)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Problems)
	assert.Equal(t, 6, result.IsosChecked)

	require.NotNil(t, b.LastValidatedAt)
	assert.Equal(t, checked, *b.LastValidatedAt)
	history, ok := b.Metadata["validations"].([]interface{})
	require.True(t, ok)
	assert.Len(t, history, 1)
}

// TestValidateStructuralMissingIso tests detection of a lost artifact
func TestValidateStructuralMissingIso(t *testing.T) {
	b := buildBackupSet(t)
	descs := isoDescriptors(b)
	require.NoError(t, os.Remove(descs[0].Path))

	v := NewValidator()
	result, err := v.Validate(context.Background(), b, ValidationStructural)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Problems, 1)
	assert.Contains(t, result.Problems[0], "is missing")
	assert.Equal(t, 5, result.IsosChecked)
}

// TestValidateStructuralTruncatedIso tests the size cross-check
func TestValidateStructuralTruncatedIso(t *testing.T) {
	b := buildBackupSet(t)
	descs := isoDescriptors(b)
	require.NoError(t, os.Truncate(descs[0].Path, 10))

	v := NewValidator()
	result, err := v.Validate(context.Background(), b, ValidationStructural)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Problems[0], "expected")
}

// TestValidateDeep tests metadata parsing and signature verification
func TestValidateDeep(t *testing.T) {
	b := buildBackupSet(t)
	v := NewValidator()

	result, err := v.Validate(context.Background(), b, ValidationDeep)
	require.NoError(t, err)
	assert.True(t, result.Valid, "problems: %v", result.Problems)
}

// TestValidateDeepSignatureMismatch tests that tampering with a signed
// file is detected.
func TestValidateDeepSignatureMismatch(t *testing.T) {
	b := buildBackupSet(t)
	infoPath := filepath.Join(b.StorageLocation, "metadata", "backup_info.yaml")
	f, err := os.OpenFile(infoPath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("# tampered\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	v := NewValidator()
	result, err := v.Validate(context.Background(), b, ValidationDeep)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Problems, 1)
	assert.Contains(t, result.Problems[0], "signature mismatch")
}

// TestValidateCompleteness tests the component flag checks per status
func TestValidateCompleteness(t *testing.T) {
	v := NewValidator()

	b := buildBackupSet(t)
	result, err := v.Validate(context.Background(), b, ValidationCompleteness)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	// A missing flag on a full backup is incomplete.
	b.HasVolumeData = false
	result, err = v.Validate(context.Background(), b, ValidationCompleteness)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Problems[0], "volume-data")

	// Non-successful backups can never be complete.
	b.Status = models.BackupStatusFailed
	result, err = v.Validate(context.Background(), b, ValidationCompleteness)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Problems[0], "only successful backups")

	// Each run appended to the validation history.
	history, ok := b.Metadata["validations"].([]interface{})
	require.True(t, ok)
	assert.Len(t, history, 3)
}

// TestValidateUnknownLevel tests rejection of an unknown level
func TestValidateUnknownLevel(t *testing.T) {
	v := NewValidator()
	_, err := v.Validate(context.Background(), buildBackupSet(t), ValidationLevel("paranoid"))
	require.Error(t, err)
}
