package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// Backups provides access to the backups table of one platform
type Backups struct {
	db *sqlx.DB
}

// NewBackups creates a backup repository over a platform pool
func NewBackups(db *sqlx.DB) *Backups {
	return &Backups{db: db}
}

const backupColumns = `id, name, status, created_at, completed_at, source_environment,
	backup_type, format_version, encryption_method, size_bytes,
	has_system_core, has_directors, has_orchestrators, has_network_config,
	has_app_definitions, has_volume_data, included_apps, included_services,
	storage_location, manifest_path, metadata, last_validated_at`

// Create inserts a backup row and fills in its id
func (r *Backups) Create(ctx context.Context, b *models.Backup) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO backups (name, status, source_environment, backup_type, format_version,
		                      encryption_method, included_apps, included_services, storage_location)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, b.Status, b.SourceEnvironment, b.BackupType, b.FormatVersion,
		b.EncryptionMethod, b.IncludedApps, b.IncludedServices, b.StorageLocation)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to insert backup")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to read backup id")
	}
	b.ID = id
	return nil
}

// GetByID fetches a backup by id
func (r *Backups) GetByID(ctx context.Context, id int64) (*models.Backup, error) {
	var b models.Backup
	err := r.db.GetContext(ctx, &b, "SELECT "+backupColumns+" FROM backups WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("backup", id)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch backup")
	}
	return &b, nil
}

// List returns one page of backups in id order, plus the total count
func (r *Backups) List(ctx context.Context, page Page) ([]*models.Backup, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM backups"); err != nil {
		return nil, 0, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to count backups")
	}

	backups := []*models.Backup{}
	err := r.db.SelectContext(ctx, &backups,
		"SELECT "+backupColumns+" FROM backups ORDER BY id LIMIT ? OFFSET ?",
		page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to list backups")
	}
	return backups, total, nil
}

// Update writes back every mutable field of a backup record. The
// coordinator owns the record for the duration of one backup, so a full
// write is safe.
func (r *Backups) Update(ctx context.Context, b *models.Backup) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE backups SET
		    name = ?, status = ?, completed_at = ?, source_environment = ?,
		    backup_type = ?, format_version = ?, encryption_method = ?, size_bytes = ?,
		    has_system_core = ?, has_directors = ?, has_orchestrators = ?,
		    has_network_config = ?, has_app_definitions = ?, has_volume_data = ?,
		    included_apps = ?, included_services = ?, storage_location = ?,
		    manifest_path = ?, metadata = ?, last_validated_at = ?
		 WHERE id = ?`,
		b.Name, b.Status, b.CompletedAt, b.SourceEnvironment,
		b.BackupType, b.FormatVersion, b.EncryptionMethod, b.SizeBytes,
		b.HasSystemCore, b.HasDirectors, b.HasOrchestrators,
		b.HasNetworkConfig, b.HasAppDefinitions, b.HasVolumeData,
		b.IncludedApps, b.IncludedServices, b.StorageLocation,
		b.ManifestPath, b.Metadata, b.LastValidatedAt,
		b.ID)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to update backup")
	}
	return nil
}
