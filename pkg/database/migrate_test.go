package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
)

func newMockPool(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

// expectHousekeeping covers the metadata preparation every Migrate run
// performs before reading the version.
func expectHousekeeping(mock sqlmock.Sqlmock) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS metadata").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE m FROM metadata").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

// TestMigrateNoopAtTargetVersion tests that a second migration to the
// same version executes no schema statements.
func TestMigrateNoopAtTargetVersion(t *testing.T) {
	pool, mock := newMockPool(t)
	runner := NewMigrationRunner(NewRegistry(t.TempDir()), true)

	expectHousekeeping(mock)
	mock.ExpectQuery("SELECT meta_value FROM metadata").
		WithArgs(SchemaVersionKey).
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow("3"))

	err := runner.Migrate(context.Background(), pool, ArtifactMain, 3)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMigrateFreshDatabase tests the full path: absent version means 0,
// statements run in order, the version is recorded last.
func TestMigrateFreshDatabase(t *testing.T) {
	root := t.TempDir()
	writeSQL(t, root, "v1/main_up.sql", "CREATE TABLE widgets (id INT);\nCREATE INDEX idx ON widgets (id);")
	writeSQL(t, root, "v1/main_sample_data.sql", "INSERT INTO widgets VALUES (1);")

	pool, mock := newMockPool(t)
	runner := NewMigrationRunner(NewRegistry(root), true)

	expectHousekeeping(mock)
	mock.ExpectQuery("SELECT meta_value FROM metadata").
		WithArgs(SchemaVersionKey).
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}))

	mock.ExpectExec("CREATE TABLE widgets").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX idx ON widgets").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO widgets").WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM metadata").
		WithArgs(SchemaVersionKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO metadata").
		WithArgs(SchemaVersionKey, "1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := runner.Migrate(context.Background(), pool, ArtifactMain, 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMigrateFailureKeepsVersion tests that a failing statement leaves
// the recorded version untouched so a restart retries.
func TestMigrateFailureKeepsVersion(t *testing.T) {
	root := t.TempDir()
	writeSQL(t, root, "v1/main_up.sql", "CREATE TABLE broken (id INT);")

	pool, mock := newMockPool(t)
	runner := NewMigrationRunner(NewRegistry(root), true)

	expectHousekeeping(mock)
	mock.ExpectQuery("SELECT meta_value FROM metadata").
		WithArgs(SchemaVersionKey).
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}))
	mock.ExpectExec("CREATE TABLE broken").
		WillReturnError(assert.AnError)

	err := runner.Migrate(context.Background(), pool, ArtifactMain, 1)
	require.Error(t, err)
	assert.Equal(t, apierrors.KindMigrationError, apierrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMigrateDeclinedConfirmation tests that refusing the prompt stops
// the migration before any statement runs.
func TestMigrateDeclinedConfirmation(t *testing.T) {
	pool, mock := newMockPool(t)
	runner := NewMigrationRunner(NewRegistry(t.TempDir()), false)
	runner.Confirm = func(artifact Artifact, current, target int) bool { return false }

	expectHousekeeping(mock)
	mock.ExpectQuery("SELECT meta_value FROM metadata").
		WithArgs(SchemaVersionKey).
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}))

	err := runner.Migrate(context.Background(), pool, ArtifactMain, 1)
	require.Error(t, err)
	assert.Equal(t, apierrors.KindMigrationError, apierrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSetMetaValueUpsert tests the delete-then-insert transaction shape
func TestSetMetaValueUpsert(t *testing.T) {
	pool, mock := newMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM metadata").
		WithArgs("some_key").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO metadata").
		WithArgs("some_key", "some_value").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := SetMetaValue(context.Background(), pool, "some_key", "some_value")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestGetMetaValueAbsent tests the three-valued read for a missing key
func TestGetMetaValueAbsent(t *testing.T) {
	pool, mock := newMockPool(t)

	mock.ExpectQuery("SELECT meta_value FROM metadata").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}))

	value, ok, err := GetMetaValue(context.Background(), pool, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}
