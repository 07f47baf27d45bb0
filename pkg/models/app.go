package models

import (
	"time"
)

// App represents a versioned deployable workload owned by an org
type App struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	OrgID           int64     `db:"org_id" json:"org_id"`
	RegionID        int64     `db:"region_id" json:"region_id"`
	Description     string    `db:"description" json:"description"`
	GitRepo         string    `db:"git_repo" json:"git_repo"`
	GitBranch       string    `db:"git_branch" json:"git_branch"`
	MaintenanceMode bool      `db:"maintenance_mode" json:"maintenance_mode"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// BuildStatus represents the lifecycle state of a build
type BuildStatus string

const (
	BuildStatusPending  BuildStatus = "pending"
	BuildStatusBuilding BuildStatus = "building"
	BuildStatusSuccess  BuildStatus = "success"
	BuildStatusFailed   BuildStatus = "failed"
)

// Build represents one build of an app
type Build struct {
	ID          int64       `db:"id" json:"id"`
	AppID       int64       `db:"app_id" json:"app_id"`
	Version     string      `db:"version" json:"version"`
	Status      BuildStatus `db:"status" json:"status"`
	SourceHash  string      `db:"source_hash" json:"source_hash"`
	ArtifactURL string      `db:"artifact_url" json:"artifact_url"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
}

// DeploymentStatus represents the lifecycle state of a deployment
type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "pending"
	DeploymentStatusInProgress DeploymentStatus = "in_progress"
	DeploymentStatusDeployed   DeploymentStatus = "deployed"
	DeploymentStatusFailed     DeploymentStatus = "failed"
	DeploymentStatusCanceled   DeploymentStatus = "canceled"
)

// Terminal reports whether the status is a terminal deployment state
func (s DeploymentStatus) Terminal() bool {
	switch s {
	case DeploymentStatusDeployed, DeploymentStatusFailed, DeploymentStatusCanceled:
		return true
	}
	return false
}

// Deployment references one app and one build
type Deployment struct {
	ID                 int64            `db:"id" json:"id"`
	AppID              int64            `db:"app_id" json:"app_id"`
	BuildID            int64            `db:"build_id" json:"build_id"`
	Status             DeploymentStatus `db:"status" json:"status"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
	StartedAt          *time.Time       `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	DeploymentDuration *int64           `db:"deployment_duration" json:"deployment_duration,omitempty"`
}

// Transition moves the deployment to a new status, maintaining the
// started_at / completed_at / duration bookkeeping.
func (d *Deployment) Transition(status DeploymentStatus, now time.Time) {
	if status == DeploymentStatusInProgress && d.StartedAt == nil {
		t := now
		d.StartedAt = &t
	}
	if status.Terminal() && d.CompletedAt == nil {
		t := now
		d.CompletedAt = &t
		if d.StartedAt != nil {
			dur := int64(now.Sub(*d.StartedAt).Seconds())
			d.DeploymentDuration = &dur
		}
	}
	d.Status = status
	d.UpdatedAt = now
}

// InstanceStatus represents the provisioning state of an instance
type InstanceStatus string

const (
	InstanceStatusProvisioning InstanceStatus = "provisioning"
	InstanceStatusRunning      InstanceStatus = "running"
	InstanceStatusFailed       InstanceStatus = "failed"
	InstanceStatusTerminated   InstanceStatus = "terminated"
)

// InstanceRuntimeStatus represents the runtime state reported by the node
type InstanceRuntimeStatus string

const (
	InstanceRuntimeRunning    InstanceRuntimeStatus = "running"
	InstanceRuntimeStopped    InstanceRuntimeStatus = "stopped"
	InstanceRuntimeTerminated InstanceRuntimeStatus = "terminated"
)

// Instance represents a running workload on a worker node
type Instance struct {
	ID             int64                 `db:"id" json:"id"`
	AppID          int64                 `db:"app_id" json:"app_id"`
	NodeID         string                `db:"node_id" json:"node_id"`
	ContainerID    string                `db:"container_id" json:"container_id"`
	Status         InstanceStatus        `db:"status" json:"status"`
	InstanceStatus InstanceRuntimeStatus `db:"instance_status" json:"instance_status"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time             `db:"updated_at" json:"updated_at"`
}
