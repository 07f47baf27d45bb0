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

// Alerts provides access to the alerts tables of one platform
type Alerts struct {
	db *sqlx.DB
}

// NewAlerts creates an alert repository over a platform pool
func NewAlerts(db *sqlx.DB) *Alerts {
	return &Alerts{db: db}
}

const alertColumns = `id, alert_type, severity, service, message, timestamp, status,
	resolved_at, resolved_by, acknowledged_by, org_id, app_id, instance_id`

// Create inserts an alert row and fills in its id
func (r *Alerts) Create(ctx context.Context, a *models.Alert) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (alert_type, severity, service, message, status, org_id, app_id, instance_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AlertType, a.Severity, a.Service, a.Message, models.AlertStatusActive,
		a.OrgID, a.AppID, a.InstanceID)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to insert alert")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to read alert id")
	}
	a.ID = id
	a.Status = models.AlertStatusActive
	return nil
}

// GetByID fetches an alert by id
func (r *Alerts) GetByID(ctx context.Context, id int64) (*models.Alert, error) {
	var a models.Alert
	err := r.db.GetContext(ctx, &a, "SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("alert", id)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch alert")
	}
	return &a, nil
}

// List returns one page of alerts in id order, optionally filtered by
// status, plus the total count.
func (r *Alerts) List(ctx context.Context, status models.AlertStatus, page Page) ([]*models.Alert, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM alerts"+where, args...); err != nil {
		return nil, 0, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to count alerts")
	}

	alerts := []*models.Alert{}
	args = append(args, page.PerPage, page.Offset())
	err := r.db.SelectContext(ctx, &alerts,
		"SELECT "+alertColumns+" FROM alerts"+where+" ORDER BY id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to list alerts")
	}
	return alerts, total, nil
}

// UpdateStatus moves an alert to a new status, recording who changed it
// and appending an alert_history row. Invalid transitions (reopening a
// resolved alert) are rejected.
func (r *Alerts) UpdateStatus(ctx context.Context, id int64, status models.AlertStatus, changedBy *int64, note string, now time.Time) (*models.Alert, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var a models.Alert
	err = tx.GetContext(ctx, &a, "SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("alert", id)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch alert")
	}

	if !a.Status.ValidTransition(status) {
		return nil, apierrors.Newf(apierrors.KindBadRequest,
			"alert %d cannot move from %s to %s", id, a.Status, status)
	}

	a.Status = status
	switch status {
	case models.AlertStatusAcknowledged:
		a.AcknowledgedBy = changedBy
	case models.AlertStatusResolved, models.AlertStatusAutoResolved:
		a.ResolvedBy = changedBy
		t := now
		a.ResolvedAt = &t
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE alerts SET status = ?, resolved_at = ?, resolved_by = ?, acknowledged_by = ?
		 WHERE id = ?`,
		a.Status, a.ResolvedAt, a.ResolvedBy, a.AcknowledgedBy, a.ID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to update alert")
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO alert_history (alert_id, status, changed_by, note) VALUES (?, ?, ?, ?)",
		a.ID, a.Status, changedBy, note)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to append alert history")
	}

	if err := tx.Commit(); err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to commit alert update")
	}
	return &a, nil
}

// History returns the status changes of one alert, oldest first
func (r *Alerts) History(ctx context.Context, alertID int64) ([]*models.AlertHistory, error) {
	history := []*models.AlertHistory{}
	err := r.db.SelectContext(ctx, &history,
		`SELECT id, alert_id, status, changed_by, note, created_at
		 FROM alert_history WHERE alert_id = ? ORDER BY id`, alertID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch alert history")
	}
	return history, nil
}
