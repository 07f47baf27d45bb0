package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/metrics"
)

// MainDatabase is the name of the process-wide database
const MainDatabase = "omni"

// PlatformDatabasePrefix prefixes every per-tenant database name
const PlatformDatabasePrefix = "omni_p_"

// platformNameRe matches DNS-safe platform names; the name is embedded
// into a database identifier so nothing else is allowed through.
var platformNameRe = regexp.MustCompile(`^[a-z]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidatePlatformName rejects names that are not DNS-safe
func ValidatePlatformName(name string) error {
	if !platformNameRe.MatchString(name) {
		return apierrors.Newf(apierrors.KindBadRequest, "invalid platform name %q: must be DNS-safe", name)
	}
	return nil
}

// PlatformDatabaseName returns the database name for a platform
func PlatformDatabaseName(name string) string {
	return PlatformDatabasePrefix + name
}

// ConnectionManager owns the main database handle and a lazy mapping of
// platform id to platform database handle. The pool map is read-mostly:
// many concurrent readers, a single writer on first use of a platform.
type ConnectionManager struct {
	baseURL  string
	mainPool *sqlx.DB

	mu            sync.RWMutex
	platformPools map[int64]*sqlx.DB
}

// NewConnectionManager connects to the database server, ensures the
// main database exists and opens its pool.
func NewConnectionManager(ctx context.Context, baseURL string) (*ConnectionManager, error) {
	cm := &ConnectionManager{
		baseURL:       strings.TrimSpace(baseURL),
		platformPools: make(map[int64]*sqlx.DB),
	}

	server, err := cm.connect(ctx, "")
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to connect to database server")
	}
	defer server.Close()

	if err := ensureDatabase(ctx, server, MainDatabase); err != nil {
		return nil, err
	}

	main, err := cm.connect(ctx, MainDatabase)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to open main pool")
	}
	cm.mainPool = main

	return cm, nil
}

// MainPool returns the handle for the process-wide omni database
func (cm *ConnectionManager) MainPool() *sqlx.DB {
	return cm.mainPool
}

// PlatformPool returns the handle for omni_p_<name>, lazily creating
// the database on first use. The hit path takes only a read lock.
func (cm *ConnectionManager) PlatformPool(ctx context.Context, platformID int64, platformName string) (*sqlx.DB, error) {
	cm.mu.RLock()
	pool, ok := cm.platformPools[platformID]
	cm.mu.RUnlock()
	if ok {
		return pool, nil
	}

	if err := ValidatePlatformName(platformName); err != nil {
		return nil, err
	}

	dbName := PlatformDatabaseName(platformName)
	if err := cm.EnsureDatabaseExists(ctx, dbName); err != nil {
		return nil, err
	}

	pool, err := cm.connect(ctx, dbName)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err,
			fmt.Sprintf("failed to open pool for %s", dbName))
	}

	cm.mu.Lock()
	// Another request may have connected while we were off the lock.
	if existing, ok := cm.platformPools[platformID]; ok {
		cm.mu.Unlock()
		pool.Close()
		return existing, nil
	}
	cm.platformPools[platformID] = pool
	metrics.PlatformPoolsOpen.Set(float64(len(cm.platformPools)))
	cm.mu.Unlock()

	lg := log.WithComponent("database")
	lg.Info().
		Int64("platform_id", platformID).
		Str("database", dbName).
		Msg("opened platform pool")

	return pool, nil
}

// ForgetPlatform closes and removes the pool for a platform, if open
func (cm *ConnectionManager) ForgetPlatform(platformID int64) {
	cm.mu.Lock()
	pool, ok := cm.platformPools[platformID]
	if ok {
		delete(cm.platformPools, platformID)
	}
	metrics.PlatformPoolsOpen.Set(float64(len(cm.platformPools)))
	cm.mu.Unlock()

	if ok {
		pool.Close()
	}
}

// EnsureDatabaseExists issues CREATE DATABASE IF NOT EXISTS for a name
func (cm *ConnectionManager) EnsureDatabaseExists(ctx context.Context, name string) error {
	server, err := cm.connect(ctx, "")
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to connect to database server")
	}
	defer server.Close()

	return ensureDatabase(ctx, server, name)
}

// Close closes every pool owned by the manager
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var firstErr error
	for id, pool := range cm.platformPools {
		if err := pool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(cm.platformPools, id)
	}
	if cm.mainPool != nil {
		if err := cm.mainPool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// connect opens a pool against a specific database ("" for the server
// itself) and verifies connectivity.
func (cm *ConnectionManager) connect(ctx context.Context, dbName string) (*sqlx.DB, error) {
	pool, err := sqlx.Open("mysql", cm.dsn(dbName))
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", dbName, err)
	}
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping %q: %w", dbName, err)
	}
	return pool, nil
}

// dsn splices a database name into the configured base URL. The base
// URL is a driver DSN whose path segment is empty, e.g.
// "omni:secret@tcp(127.0.0.1:3306)/?parseTime=true".
func (cm *ConnectionManager) dsn(dbName string) string {
	base := cm.baseURL
	params := ""
	if i := strings.Index(base, "?"); i >= 0 {
		params = base[i:]
		base = base[:i]
	}
	base = strings.TrimSuffix(base, "/")
	return base + "/" + dbName + params
}

func ensureDatabase(ctx context.Context, pool *sqlx.DB, name string) error {
	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if _, err := pool.ExecContext(ctx, stmt); err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err,
			fmt.Sprintf("failed to ensure database %s", name))
	}
	return nil
}
