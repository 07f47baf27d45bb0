package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// Audit provides append access to the main-database audit log
type Audit struct {
	db *sqlx.DB
}

// NewAudit creates an audit repository over the main pool
func NewAudit(db *sqlx.DB) *Audit {
	return &Audit{db: db}
}

// Append records one mutating operation
func (r *Audit) Append(ctx context.Context, e *models.AuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO audit_log (user_id, action, entity, entity_id, detail) VALUES (?, ?, ?, ?, ?)",
		e.UserID, e.Action, e.Entity, e.EntityID, e.Detail)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to append audit entry")
	}
	return nil
}

// Recent returns the newest audit entries, most recent first
func (r *Audit) Recent(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	entries := []*models.AuditEntry{}
	err := r.db.SelectContext(ctx, &entries,
		`SELECT id, user_id, action, entity, entity_id, detail, created_at
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to list audit entries")
	}
	return entries, nil
}
