package bootstrap

import "time"

// SshHost is one machine in a cloud's bootstrap inventory
type SshHost struct {
	Name      string `json:"name" yaml:"name"`
	IP        string `json:"ip" yaml:"ip"`
	IsBastion bool   `json:"is_bastion" yaml:"is_bastion"`
}

// CloudConfig describes one cloud to bootstrap
type CloudConfig struct {
	CloudName           string    `json:"cloud_name" yaml:"cloud_name"`
	SSHHosts            []SshHost `json:"ssh_hosts" yaml:"ssh_hosts"`
	EnableMonitoring    bool      `json:"enable_monitoring" yaml:"enable_monitoring"`
	EnableBackups       bool      `json:"enable_backups" yaml:"enable_backups"`
	BackupRetentionDays int       `json:"backup_retention_days" yaml:"backup_retention_days"`
}

// HostStatus is the lifecycle state of one host within a phase
type HostStatus string

const (
	HostStatusPending    HostStatus = "pending"
	HostStatusInProgress HostStatus = "in_progress"
	HostStatusCompleted  HostStatus = "completed"
	HostStatusFailed     HostStatus = "failed"
)

// ServiceStatus records one service installed on a host
type ServiceStatus struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	InstalledAt time.Time `json:"installed_at"`
}

// Host is the shared progress record for one machine. Later phases
// reset step and progress but only ever extend Services.
type Host struct {
	Name        string          `json:"name"`
	IP          string          `json:"ip"`
	IsBastion   bool            `json:"is_bastion"`
	Services    []ServiceStatus `json:"services"`
	CurrentStep string          `json:"current_step"`
	Progress    int             `json:"progress"`
	Status      HostStatus      `json:"status"`
	Error       string          `json:"error,omitempty"`
	Completed   bool            `json:"completed"`
}

// Phase names a stage of the cloud rollout
type Phase string

const (
	PhaseBootstrap  Phase = "bootstrap"
	PhaseNetwork    Phase = "network"
	PhaseMonitoring Phase = "monitoring"
	PhaseBackup     Phase = "backup"
	PhaseDone       Phase = "done"
)

// CloudStatus is the snapshot returned to status endpoints
type CloudStatus struct {
	CloudName   string     `json:"cloud_name"`
	Phase       Phase      `json:"phase"`
	Hosts       []Host     `json:"hosts"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// step is one rung of the per-host ladder
type step struct {
	name     string
	progress int
}

// bootstrapLadder is the fixed progression every host walks during the
// bootstrap and network phases.
var bootstrapLadder = []step{
	{"Establishing SSH connection", 0},
	{"Verifying system requirements", 20},
	{"Installing binaries", 40},
	{"Configuring system services", 60},
	{"Applying security hardening", 80},
	{"Role-specific configuration", 90},
	{"Bootstrap completed", 100},
}

// Role service inventories installed at the role-configuration rung.
var (
	bastionServices = []string{"orchestrator-core", "network-agent", "api-gateway", "auth-service"}
	workerServices  = []string{"orchestrator-core", "network-agent", "container-runtime"}
)

const (
	monitoringService = "metrics-collector"
	backupService     = "backup-manager"
)
