package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variable names understood by the orchestrator.
const (
	EnvDatabaseURL   = "OMNI_ORCH_DATABASE_URL"
	EnvJWTSecret     = "OMNI_ORCH_JWT_SECRET"
	EnvSchemaVersion = "OMNI_ORCH_SCHEMA_VERSION"
	EnvBypassConfirm = "OMNI_ORCH_BYPASS_CONFIRM"
	EnvListenAddr    = "OMNI_ORCH_LISTEN_ADDR"
	EnvBackupDir     = "OMNI_ORCH_BACKUP_DIR"
	EnvAgentURL      = "OMNI_ORCH_AGENT_URL"
)

// DefaultSchemaVersion is the target schema version when none is configured.
const DefaultSchemaVersion = 1

// Config holds process-wide configuration for the orchestrator
type Config struct {
	DatabaseURL   string
	JWTSecret     string
	SchemaVersion int
	BypassConfirm bool
	ListenAddr    string
	BackupDir     string
	AgentURL      string
	SQLDir        string
}

// FromEnv builds a Config from environment variables, applying defaults
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   os.Getenv(EnvDatabaseURL),
		JWTSecret:     os.Getenv(EnvJWTSecret),
		SchemaVersion: DefaultSchemaVersion,
		BypassConfirm: os.Getenv(EnvBypassConfirm) == "confirm",
		ListenAddr:    os.Getenv(EnvListenAddr),
		BackupDir:     os.Getenv(EnvBackupDir),
		AgentURL:      os.Getenv(EnvAgentURL),
		SQLDir:        "sql",
	}

	if v := os.Getenv(EnvSchemaVersion); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvSchemaVersion, v, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("invalid %s %d: must be >= 1", EnvSchemaVersion, n)
		}
		cfg.SchemaVersion = n
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8002"
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = "/var/lib/omni/backups"
	}

	return cfg, nil
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s is required", EnvDatabaseURL)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%s is required", EnvJWTSecret)
	}
	return nil
}
