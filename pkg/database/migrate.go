package database

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/metrics"
)

// MigrationRunner brings a database from its recorded schema version to
// a target version using statements from the Registry.
type MigrationRunner struct {
	registry *Registry

	// BypassConfirm suppresses the interactive prompt
	// (OMNI_ORCH_BYPASS_CONFIRM=confirm).
	BypassConfirm bool

	// Confirm asks the operator before a migration runs. Defaults to a
	// stdin prompt; tests substitute their own.
	Confirm func(artifact Artifact, current, target int) bool

	// Migrations for a single pool are serialized process-wide; partial
	// failure leaves the recorded version unchanged so a retry re-runs
	// from the last recorded version.
	mu sync.Mutex
}

// NewMigrationRunner creates a runner over a schema registry
func NewMigrationRunner(registry *Registry, bypassConfirm bool) *MigrationRunner {
	r := &MigrationRunner{
		registry:      registry,
		BypassConfirm: bypassConfirm,
	}
	r.Confirm = r.promptConfirm
	return r
}

// Migrate brings the pool's database to the target version. Applying it
// twice in a row is a no-op the second time.
func (r *MigrationRunner) Migrate(ctx context.Context, pool *sqlx.DB, artifact Artifact, target int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := log.WithComponent("migration")

	if err := EnsureMetadataTable(ctx, pool); err != nil {
		return apierrors.Wrap(apierrors.KindMigrationError, err, "failed to prepare metadata table")
	}
	if err := CollapseDuplicateMeta(ctx, pool); err != nil {
		return apierrors.Wrap(apierrors.KindMigrationError, err, "failed metadata housekeeping")
	}

	current, err := r.currentVersion(ctx, pool)
	if err != nil {
		return apierrors.Wrap(apierrors.KindMigrationError, err, "failed to read schema version")
	}

	if current == target {
		logger.Debug().
			Str("artifact", string(artifact)).
			Int("version", current).
			Msg("schema already at target version")
		return nil
	}

	if !r.BypassConfirm && !r.Confirm(artifact, current, target) {
		return apierrors.Newf(apierrors.KindMigrationError,
			"migration of %s from v%d to v%d not confirmed", artifact, current, target)
	}

	logger.Info().
		Str("artifact", string(artifact)).
		Int("from", current).
		Int("to", target).
		Msg("running schema migration")

	stmts, err := r.registry.Load(artifact, target)
	if err != nil {
		metrics.MigrationsTotal.WithLabelValues(string(artifact), "failed").Inc()
		return apierrors.Wrap(apierrors.KindMigrationError, err, "failed to load migration statements")
	}

	samples, err := r.registry.Sample(artifact, target)
	if err != nil {
		metrics.MigrationsTotal.WithLabelValues(string(artifact), "failed").Inc()
		return apierrors.Wrap(apierrors.KindMigrationError, err, "failed to load sample data statements")
	}

	for _, stmt := range append(stmts, samples...) {
		if _, err := pool.ExecContext(ctx, stmt); err != nil {
			metrics.MigrationsTotal.WithLabelValues(string(artifact), "failed").Inc()
			return apierrors.Wrap(apierrors.KindMigrationError, err,
				fmt.Sprintf("failed to execute migration statement %q", truncateStmt(stmt)))
		}
	}

	if err := SetMetaValue(ctx, pool, SchemaVersionKey, strconv.Itoa(target)); err != nil {
		metrics.MigrationsTotal.WithLabelValues(string(artifact), "failed").Inc()
		return apierrors.Wrap(apierrors.KindMigrationError, err, "failed to record schema version")
	}

	metrics.MigrationsTotal.WithLabelValues(string(artifact), "success").Inc()
	logger.Info().
		Str("artifact", string(artifact)).
		Int("version", target).
		Msg("schema migration complete")

	return nil
}

// currentVersion reads the recorded schema version; absent means 0
func (r *MigrationRunner) currentVersion(ctx context.Context, pool *sqlx.DB) (int, error) {
	value, ok, err := GetMetaValue(ctx, pool, SchemaVersionKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	version, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("corrupt schema version %q: %w", value, err)
	}
	return version, nil
}

func (r *MigrationRunner) promptConfirm(artifact Artifact, current, target int) bool {
	fmt.Fprintf(os.Stderr,
		"About to migrate %s schema from v%d to v%d. Continue? [y/N] ", artifact, current, target)
	return readYes(os.Stdin)
}

func readYes(in io.Reader) bool {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func truncateStmt(stmt string) string {
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) > 80 {
		return stmt[:80] + "..."
	}
	return stmt
}
