package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// Deployments provides access to builds and deployments of one platform
type Deployments struct {
	db *sqlx.DB
}

// NewDeployments creates a deployment repository over a platform pool
func NewDeployments(db *sqlx.DB) *Deployments {
	return &Deployments{db: db}
}

// CreateBuild inserts a build row and fills in its id
func (r *Deployments) CreateBuild(ctx context.Context, b *models.Build) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO builds (app_id, version, status, source_hash, artifact_url)
		 VALUES (?, ?, ?, ?, ?)`,
		b.AppID, b.Version, b.Status, b.SourceHash, b.ArtifactURL)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to insert build")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to read build id")
	}
	b.ID = id
	return nil
}

// UpdateBuildStatus moves a build through pending → building →
// (success|failed); terminal states stamp completed_at.
func (r *Deployments) UpdateBuildStatus(ctx context.Context, buildID int64, status models.BuildStatus, now time.Time) error {
	var completedAt *time.Time
	if status == models.BuildStatusSuccess || status == models.BuildStatusFailed {
		completedAt = &now
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE builds SET status = ?, completed_at = ? WHERE id = ?",
		status, completedAt, buildID)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to update build status")
	}
	return nil
}

// CreateDeployment inserts a deployment row and fills in its id
func (r *Deployments) CreateDeployment(ctx context.Context, d *models.Deployment) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO deployments (app_id, build_id, status) VALUES (?, ?, ?)",
		d.AppID, d.BuildID, d.Status)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to insert deployment")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to read deployment id")
	}
	d.ID = id
	return nil
}

// GetDeployment fetches a deployment by id
func (r *Deployments) GetDeployment(ctx context.Context, id int64) (*models.Deployment, error) {
	var d models.Deployment
	err := r.db.GetContext(ctx, &d,
		`SELECT id, app_id, build_id, status, created_at, updated_at,
		        started_at, completed_at, deployment_duration
		 FROM deployments WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("deployment", id)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch deployment")
	}
	return &d, nil
}

// Transition moves a deployment to a new status inside a transaction,
// applying the started_at/completed_at/duration bookkeeping. The read
// and the write share the transaction because the new timestamps depend
// on the stored ones.
func (r *Deployments) Transition(ctx context.Context, id int64, status models.DeploymentStatus, now time.Time) (*models.Deployment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var d models.Deployment
	err = tx.GetContext(ctx, &d,
		`SELECT id, app_id, build_id, status, created_at, updated_at,
		        started_at, completed_at, deployment_duration
		 FROM deployments WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("deployment", id)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch deployment")
	}

	d.Transition(status, now)

	_, err = tx.ExecContext(ctx,
		`UPDATE deployments SET status = ?, started_at = ?, completed_at = ?, deployment_duration = ?
		 WHERE id = ?`,
		d.Status, d.StartedAt, d.CompletedAt, d.DeploymentDuration, d.ID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to update deployment")
	}

	if err := tx.Commit(); err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to commit deployment transition")
	}
	return &d, nil
}
