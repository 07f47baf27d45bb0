package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BackupStatus represents the lifecycle state of a backup
type BackupStatus string

const (
	BackupStatusPending      BackupStatus = "pending"
	BackupStatusInitializing BackupStatus = "initializing"
	BackupStatusInProgress   BackupStatus = "in_progress"
	BackupStatusSuccess      BackupStatus = "success"
	BackupStatusFailed       BackupStatus = "failed"
)

// BackupType classifies the scope of a backup
type BackupType string

const (
	BackupTypeFull   BackupType = "full"
	BackupTypeSystem BackupType = "system"
	BackupTypeApp    BackupType = "app"
	// BackupTypeIncremental is accepted on the model but the coordinator
	// dispatches it identically to a full backup.
	BackupTypeIncremental BackupType = "incremental"
)

// Backup represents one backup set spanning cluster components
type Backup struct {
	ID                int64        `db:"id" json:"id"`
	Name              string       `db:"name" json:"name"`
	Status            BackupStatus `db:"status" json:"status"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	CompletedAt       *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	SourceEnvironment string       `db:"source_environment" json:"source_environment"`
	BackupType        BackupType   `db:"backup_type" json:"backup_type"`
	FormatVersion     string       `db:"format_version" json:"format_version"`
	EncryptionMethod  string       `db:"encryption_method" json:"encryption_method"`
	SizeBytes         int64        `db:"size_bytes" json:"size_bytes"`
	HasSystemCore     bool         `db:"has_system_core" json:"has_system_core"`
	HasDirectors      bool         `db:"has_directors" json:"has_directors"`
	HasOrchestrators  bool         `db:"has_orchestrators" json:"has_orchestrators"`
	HasNetworkConfig  bool         `db:"has_network_config" json:"has_network_config"`
	HasAppDefinitions bool         `db:"has_app_definitions" json:"has_app_definitions"`
	HasVolumeData     bool         `db:"has_volume_data" json:"has_volume_data"`
	IncludedApps      JSONList     `db:"included_apps" json:"included_apps"`
	IncludedServices  JSONList     `db:"included_services" json:"included_services"`
	StorageLocation   string       `db:"storage_location" json:"storage_location"`
	ManifestPath      string       `db:"manifest_path" json:"manifest_path"`
	Metadata          JSONMap      `db:"metadata" json:"metadata"`
	LastValidatedAt   *time.Time   `db:"last_validated_at" json:"last_validated_at,omitempty"`
}

// RequiredComponents returns the component flags the backup type demands
// at success: full needs all six, system the four system ones, app the
// two app ones. Incremental follows full.
func (b *Backup) RequiredComponents() []ComponentType {
	switch b.BackupType {
	case BackupTypeSystem:
		return []ComponentType{
			ComponentSystemCore, ComponentDirector,
			ComponentOrchestrator, ComponentNetworkConfig,
		}
	case BackupTypeApp:
		return []ComponentType{ComponentAppDefinitions, ComponentVolumeData}
	default:
		return []ComponentType{
			ComponentSystemCore, ComponentDirector,
			ComponentOrchestrator, ComponentNetworkConfig,
			ComponentAppDefinitions, ComponentVolumeData,
		}
	}
}

// HasComponent reports whether the flag for a component type is set
func (b *Backup) HasComponent(ct ComponentType) bool {
	switch ct {
	case ComponentSystemCore:
		return b.HasSystemCore
	case ComponentDirector:
		return b.HasDirectors
	case ComponentOrchestrator:
		return b.HasOrchestrators
	case ComponentNetworkConfig:
		return b.HasNetworkConfig
	case ComponentAppDefinitions:
		return b.HasAppDefinitions
	case ComponentVolumeData:
		return b.HasVolumeData
	}
	return false
}

// SetComponent sets the flag for a component type
func (b *Backup) SetComponent(ct ComponentType) {
	switch ct {
	case ComponentSystemCore:
		b.HasSystemCore = true
	case ComponentDirector:
		b.HasDirectors = true
	case ComponentOrchestrator:
		b.HasOrchestrators = true
	case ComponentNetworkConfig:
		b.HasNetworkConfig = true
	case ComponentAppDefinitions:
		b.HasAppDefinitions = true
	case ComponentVolumeData:
		b.HasVolumeData = true
	}
}

// ComponentType identifies one unit of backup within a set
type ComponentType string

const (
	ComponentSystemCore     ComponentType = "system-core"
	ComponentDirector       ComponentType = "director"
	ComponentOrchestrator   ComponentType = "orchestrator"
	ComponentNetworkConfig  ComponentType = "network-config"
	ComponentAppDefinitions ComponentType = "app-definitions"
	ComponentVolumeData     ComponentType = "volume-data"
)

// JobStatus represents the lifecycle state of one backup job
type JobStatus string

const (
	JobStatusStarting   JobStatus = "starting"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the job status is terminal
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// BackupJobStatus tracks one unit of work in the backup coordinator,
// identified by (node_id, component_type).
type BackupJobStatus struct {
	NodeID        string        `json:"node_id"`
	ComponentType ComponentType `json:"component_type"`
	Status        JobStatus     `json:"status"`
	Progress      int           `json:"progress"`
	IsoPath       string        `json:"iso_path,omitempty"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	SizeBytes     int64         `json:"size_bytes"`
}

// JSONList is a string list stored as a JSON column
type JSONList []string

// Value implements driver.Valuer
func (l JSONList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *JSONList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// JSONMap is an opaque JSON object stored as a JSON column. Dynamic
// config is kept opaque at the DB boundary and validated into typed
// shapes at ingress.
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
