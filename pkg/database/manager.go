package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/models"
	"github.com/cuemby/omni-orchestrator/pkg/store"
)

// Manager is the single entry point for platform creation, lookup and
// pool acquisition. It composes the schema registry, the connection
// manager and the migration runner.
type Manager struct {
	connections *ConnectionManager
	runner      *MigrationRunner
	platforms   *store.Platforms

	// TargetVersion is the process-wide target schema version.
	TargetVersion int
}

// Options configures a Manager
type Options struct {
	SQLDir        string
	TargetVersion int
	BypassConfirm bool
}

// New connects to the server, ensures the main database exists, opens
// its pool and runs the main-schema migration. A non-nil error here is
// fatal to process initialization.
func New(ctx context.Context, databaseURL string, opts Options) (*Manager, error) {
	registry := NewRegistry(opts.SQLDir)

	connections, err := NewConnectionManager(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	runner := NewMigrationRunner(registry, opts.BypassConfirm)

	m := &Manager{
		connections:   connections,
		runner:        runner,
		platforms:     store.NewPlatforms(connections.MainPool()),
		TargetVersion: opts.TargetVersion,
	}

	if err := runner.Migrate(ctx, connections.MainPool(), ArtifactMain, opts.TargetVersion); err != nil {
		connections.Close()
		return nil, err
	}

	return m, nil
}

// MainPool returns the main database handle
func (m *Manager) MainPool() *sqlx.DB {
	return m.connections.MainPool()
}

// Platforms returns the platform repository over the main database
func (m *Manager) Platforms() *store.Platforms {
	return m.platforms
}

// Runner exposes the migration runner (confirmation hooks, CLI use)
func (m *Manager) Runner() *MigrationRunner {
	return m.runner
}

// CreatePlatform inserts the platform row, creates and migrates its
// dedicated database. Either both effects take place or the row is
// removed (best effort) and the error returned.
func (m *Manager) CreatePlatform(ctx context.Context, p *models.Platform) error {
	if err := ValidatePlatformName(p.Name); err != nil {
		return err
	}

	if err := m.platforms.Create(ctx, p); err != nil {
		return err
	}

	pool, err := m.connections.PlatformPool(ctx, p.ID, p.Name)
	if err == nil {
		err = m.runner.Migrate(ctx, pool, ArtifactPlatform, m.TargetVersion)
	}
	if err != nil {
		// Roll back the registration so the platform is never half-live.
		if delErr := m.platforms.Delete(ctx, p.ID); delErr != nil {
			lg := log.WithComponent("database")
			lg.Error().
				Err(delErr).
				Int64("platform_id", p.ID).
				Msg("failed to remove platform row after provisioning failure")
		}
		m.connections.ForgetPlatform(p.ID)
		return err
	}

	lg := log.WithComponent("database")
	lg.Info().
		Int64("platform_id", p.ID).
		Str("name", p.Name).
		Msg("platform created")

	return nil
}

// GetPlatformPool returns the pool for a known platform. The hit path
// is lock-free apart from the pool map read lock.
func (m *Manager) GetPlatformPool(ctx context.Context, id int64, name string) (*sqlx.DB, error) {
	return m.connections.PlatformPool(ctx, id, name)
}

// GetPlatformByID fetches a platform record from the main database
func (m *Manager) GetPlatformByID(ctx context.Context, id int64) (*models.Platform, error) {
	return m.platforms.GetByID(ctx, id)
}

// GetPlatformByName fetches a platform record by name
func (m *Manager) GetPlatformByName(ctx context.Context, name string) (*models.Platform, error) {
	return m.platforms.GetByName(ctx, name)
}

// ListPlatforms returns all registered platforms
func (m *Manager) ListPlatforms(ctx context.Context) ([]*models.Platform, error) {
	return m.platforms.List(ctx)
}

// DeletePlatform removes the platform row and closes its pool. Dropping
// the per-tenant database is left to an operator tool.
func (m *Manager) DeletePlatform(ctx context.Context, id int64) error {
	if err := m.platforms.Delete(ctx, id); err != nil {
		return err
	}
	m.connections.ForgetPlatform(id)
	return nil
}

// Close releases every pool owned by the manager
func (m *Manager) Close() error {
	return m.connections.Close()
}
