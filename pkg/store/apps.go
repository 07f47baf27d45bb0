package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// Apps provides access to the apps and instances tables of one platform
type Apps struct {
	db *sqlx.DB
}

// NewApps creates an app repository over a platform pool
func NewApps(db *sqlx.DB) *Apps {
	return &Apps{db: db}
}

const appColumns = `id, name, org_id, region_id, description, git_repo, git_branch,
	maintenance_mode, created_at, updated_at`

// Create inserts an app row and fills in its id
func (r *Apps) Create(ctx context.Context, a *models.App) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO apps (name, org_id, region_id, description, git_repo, git_branch)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Name, a.OrgID, a.RegionID, a.Description, a.GitRepo, a.GitBranch)
	if err != nil {
		if isDuplicateKey(err) {
			return apierrors.Newf(apierrors.KindConflict, "app %q already exists in org %d", a.Name, a.OrgID)
		}
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to insert app")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to read app id")
	}
	a.ID = id
	return nil
}

// GetByID fetches an app by id
func (r *Apps) GetByID(ctx context.Context, id int64) (*models.App, error) {
	var a models.App
	err := r.db.GetContext(ctx, &a, "SELECT "+appColumns+" FROM apps WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("app", id)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch app")
	}
	return &a, nil
}

// List returns one page of apps in id order plus the total count
func (r *Apps) List(ctx context.Context, page Page) ([]*models.App, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM apps"); err != nil {
		return nil, 0, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to count apps")
	}

	apps := []*models.App{}
	err := r.db.SelectContext(ctx, &apps,
		"SELECT "+appColumns+" FROM apps ORDER BY id LIMIT ? OFFSET ?",
		page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to list apps")
	}
	return apps, total, nil
}

// Terminate deletes an app and marks all of its running instances
// terminated, atomically.
func (r *Apps) Terminate(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM apps WHERE id = ?", id)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to delete app")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return apierrors.NotFound("app", id)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE instances SET status = ?, instance_status = ?
		 WHERE app_id = ? AND status = ?`,
		models.InstanceStatusTerminated, models.InstanceRuntimeTerminated,
		id, models.InstanceStatusRunning)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to terminate app instances")
	}

	if err := tx.Commit(); err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to commit app termination")
	}
	return nil
}

// CreateInstance inserts an instance row and fills in its id
func (r *Apps) CreateInstance(ctx context.Context, in *models.Instance) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO instances (app_id, node_id, container_id, status, instance_status)
		 VALUES (?, ?, ?, ?, ?)`,
		in.AppID, in.NodeID, in.ContainerID, in.Status, in.InstanceStatus)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to insert instance")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to read instance id")
	}
	in.ID = id
	return nil
}

// ListInstances returns the instances of one app in id order
func (r *Apps) ListInstances(ctx context.Context, appID int64) ([]*models.Instance, error) {
	instances := []*models.Instance{}
	err := r.db.SelectContext(ctx, &instances,
		`SELECT id, app_id, node_id, container_id, status, instance_status, created_at, updated_at
		 FROM instances WHERE app_id = ? ORDER BY id`, appID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to list instances")
	}
	return instances, nil
}
