package models

import (
	"time"
)

// AlertStatus represents the lifecycle state of an alert. Progression is
// monotone toward resolved/auto_resolved; acknowledged may be re-entered
// across escalations.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusAutoResolved AlertStatus = "auto_resolved"
)

// Valid reports whether s is a known alert status
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusActive, AlertStatusAcknowledged, AlertStatusResolved, AlertStatusAutoResolved:
		return true
	}
	return false
}

// Resolved reports whether the status is a resolved terminal state
func (s AlertStatus) Resolved() bool {
	return s == AlertStatusResolved || s == AlertStatusAutoResolved
}

// ValidTransition reports whether an alert may move from s to next.
// Resolved alerts never reopen; acknowledged can recur.
func (s AlertStatus) ValidTransition(next AlertStatus) bool {
	if s.Resolved() {
		return false
	}
	switch next {
	case AlertStatusActive:
		return s == AlertStatusActive
	case AlertStatusAcknowledged, AlertStatusResolved, AlertStatusAutoResolved:
		return true
	}
	return false
}

// AlertSeverity classifies alert importance
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert represents a platform alert
type Alert struct {
	ID             int64         `db:"id" json:"id"`
	AlertType      string        `db:"alert_type" json:"alert_type"`
	Severity       AlertSeverity `db:"severity" json:"severity"`
	Service        string        `db:"service" json:"service"`
	Message        string        `db:"message" json:"message"`
	Timestamp      time.Time     `db:"timestamp" json:"timestamp"`
	Status         AlertStatus   `db:"status" json:"status"`
	ResolvedAt     *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy     *int64        `db:"resolved_by" json:"resolved_by,omitempty"`
	AcknowledgedBy *int64        `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	OrgID          *int64        `db:"org_id" json:"org_id,omitempty"`
	AppID          *int64        `db:"app_id" json:"app_id,omitempty"`
	InstanceID     *int64        `db:"instance_id" json:"instance_id,omitempty"`
}

// AlertHistory records one status change of an alert
type AlertHistory struct {
	ID        int64       `db:"id" json:"id"`
	AlertID   int64       `db:"alert_id" json:"alert_id"`
	Status    AlertStatus `db:"status" json:"status"`
	ChangedBy *int64      `db:"changed_by" json:"changed_by,omitempty"`
	Note      string      `db:"note" json:"note"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
