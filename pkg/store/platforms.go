package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// Platforms provides access to the platforms table in the main database
type Platforms struct {
	db *sqlx.DB
}

// NewPlatforms creates a platform repository over the main pool
func NewPlatforms(db *sqlx.DB) *Platforms {
	return &Platforms{db: db}
}

// Create inserts a platform row and fills in its id
func (r *Platforms) Create(ctx context.Context, p *models.Platform) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO platforms (name, description) VALUES (?, ?)",
		p.Name, p.Description)
	if err != nil {
		if isDuplicateKey(err) {
			return apierrors.Newf(apierrors.KindConflict, "platform %q already exists", p.Name)
		}
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to insert platform")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to read platform id")
	}
	p.ID = id
	return nil
}

// GetByID fetches a platform by id
func (r *Platforms) GetByID(ctx context.Context, id int64) (*models.Platform, error) {
	var p models.Platform
	err := r.db.GetContext(ctx, &p,
		"SELECT id, name, description, created_at, updated_at FROM platforms WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("platform", id)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch platform")
	}
	return &p, nil
}

// GetByName fetches a platform by its unique name
func (r *Platforms) GetByName(ctx context.Context, name string) (*models.Platform, error) {
	var p models.Platform
	err := r.db.GetContext(ctx, &p,
		"SELECT id, name, description, created_at, updated_at FROM platforms WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("platform", name)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch platform")
	}
	return &p, nil
}

// List returns all platforms in id order
func (r *Platforms) List(ctx context.Context) ([]*models.Platform, error) {
	platforms := []*models.Platform{}
	err := r.db.SelectContext(ctx, &platforms,
		"SELECT id, name, description, created_at, updated_at FROM platforms ORDER BY id")
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to list platforms")
	}
	return platforms, nil
}

// Delete removes a platform row
func (r *Platforms) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM platforms WHERE id = ?", id)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to delete platform")
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return apierrors.NotFound("platform", id)
	}
	return nil
}

// isDuplicateKey recognizes the MySQL duplicate-entry error (1062)
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Error 1062")
}
