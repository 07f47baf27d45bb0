package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

var deploymentColumns = []string{
	"id", "app_id", "build_id", "status", "created_at", "updated_at",
	"started_at", "completed_at", "deployment_duration",
}

func newDeploymentsRepo(t *testing.T) (*Deployments, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDeployments(sqlx.NewDb(db, "sqlmock")), mock
}

// TestDeploymentTransitionPersistsDuration tests that reaching a
// terminal state writes completed_at and the computed duration in one
// transaction.
func TestDeploymentTransitionPersistsDuration(t *testing.T) {
	repo, mock := newDeploymentsRepo(t)
	started := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM deployments WHERE id").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(deploymentColumns).
			AddRow(3, 1, 2, "in_progress", started, started, started, nil, nil))
	mock.ExpectExec("UPDATE deployments SET status").
		WithArgs(models.DeploymentStatusDeployed, started, now, int64(90), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d, err := repo.Transition(context.Background(), 3, models.DeploymentStatusDeployed, now)
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusDeployed, d.Status)
	require.NotNil(t, d.CompletedAt)
	require.NotNil(t, d.DeploymentDuration)
	assert.Equal(t, int64(90), *d.DeploymentDuration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestDeploymentTransitionUnknownID tests the not-found path
func TestDeploymentTransitionUnknownID(t *testing.T) {
	repo, mock := newDeploymentsRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM deployments WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(deploymentColumns))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), 99, models.DeploymentStatusDeployed, time.Now())
	require.Error(t, err)
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))
}

// TestCreateBuildAssignsID tests the insert-and-readback contract
func TestCreateBuildAssignsID(t *testing.T) {
	repo, mock := newDeploymentsRepo(t)

	mock.ExpectExec("INSERT INTO builds").
		WithArgs(int64(1), "1.4.0", models.BuildStatusPending, "", "/uploads/acme/app-1/1.4.0-web.tar.gz").
		WillReturnResult(sqlmock.NewResult(12, 1))

	b := &models.Build{
		AppID:       1,
		Version:     "1.4.0",
		Status:      models.BuildStatusPending,
		ArtifactURL: "/uploads/acme/app-1/1.4.0-web.tar.gz",
	}
	require.NoError(t, repo.CreateBuild(context.Background(), b))
	assert.Equal(t, int64(12), b.ID)
}

// TestUpdateBuildStatusStampsCompletion tests terminal timestamping
func TestUpdateBuildStatusStampsCompletion(t *testing.T) {
	repo, mock := newDeploymentsRepo(t)
	now := time.Date(2025, 4, 1, 8, 5, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE builds SET status").
		WithArgs(models.BuildStatusSuccess, now, int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateBuildStatus(context.Background(), 12, models.BuildStatusSuccess, now))

	// Non-terminal states clear the completion timestamp.
	mock.ExpectExec("UPDATE builds SET status").
		WithArgs(models.BuildStatusBuilding, nil, int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateBuildStatus(context.Background(), 12, models.BuildStatusBuilding, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}
