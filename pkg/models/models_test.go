package models

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The JSON column types must satisfy the database/sql interfaces, or
// every query argument carrying them is rejected by the driver.
var (
	_ driver.Valuer = JSONList(nil)
	_ driver.Valuer = JSONMap(nil)
	_ sql.Scanner   = (*JSONList)(nil)
	_ sql.Scanner   = (*JSONMap)(nil)
)

// TestNewPagination tests envelope arithmetic
func TestNewPagination(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		perPage    int
		total      int
		wantPages  int
	}{
		{"exact division", 1, 10, 30, 3},
		{"remainder rounds up", 2, 10, 31, 4},
		{"empty set", 1, 10, 0, 0},
		{"single short page", 1, 50, 7, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.perPage, tt.total)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.total, p.TotalCount)
		})
	}
}

// TestDeploymentTransition tests started_at/completed_at/duration
// bookkeeping across the lifecycle.
func TestDeploymentTransition(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := &Deployment{Status: DeploymentStatusPending}

	d.Transition(DeploymentStatusInProgress, start)
	require.NotNil(t, d.StartedAt)
	assert.Equal(t, start, *d.StartedAt)
	assert.Nil(t, d.CompletedAt)

	// A second in_progress transition must not reset started_at.
	d.Transition(DeploymentStatusInProgress, start.Add(10*time.Second))
	assert.Equal(t, start, *d.StartedAt)

	d.Transition(DeploymentStatusDeployed, start.Add(90*time.Second))
	require.NotNil(t, d.CompletedAt)
	require.NotNil(t, d.DeploymentDuration)
	assert.Equal(t, int64(90), *d.DeploymentDuration)

	// Terminal timestamps are stable once set.
	d.Transition(DeploymentStatusDeployed, start.Add(500*time.Second))
	assert.Equal(t, int64(90), *d.DeploymentDuration)
}

// TestDeploymentTransitionStraightToTerminal tests a failure before the
// deployment ever started; there is no duration to compute.
func TestDeploymentTransitionStraightToTerminal(t *testing.T) {
	now := time.Now()
	d := &Deployment{Status: DeploymentStatusPending}

	d.Transition(DeploymentStatusFailed, now)
	assert.Nil(t, d.StartedAt)
	require.NotNil(t, d.CompletedAt)
	assert.Nil(t, d.DeploymentDuration)
}

// TestAlertStatusTransitions tests monotone progression toward resolved
func TestAlertStatusTransitions(t *testing.T) {
	tests := []struct {
		from AlertStatus
		to   AlertStatus
		ok   bool
	}{
		{AlertStatusActive, AlertStatusAcknowledged, true},
		{AlertStatusActive, AlertStatusResolved, true},
		{AlertStatusActive, AlertStatusAutoResolved, true},
		{AlertStatusAcknowledged, AlertStatusAcknowledged, true},
		{AlertStatusAcknowledged, AlertStatusResolved, true},
		{AlertStatusResolved, AlertStatusActive, false},
		{AlertStatusResolved, AlertStatusAcknowledged, false},
		{AlertStatusAutoResolved, AlertStatusResolved, false},
		{AlertStatusAcknowledged, AlertStatusActive, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.ValidTransition(tt.to),
			"transition %s -> %s", tt.from, tt.to)
	}
}

// TestBackupComponentFlags tests the flag accessors and the per-type
// required component sets.
func TestBackupComponentFlags(t *testing.T) {
	b := &Backup{BackupType: BackupTypeFull}

	for _, ct := range b.RequiredComponents() {
		assert.False(t, b.HasComponent(ct))
		b.SetComponent(ct)
		assert.True(t, b.HasComponent(ct))
	}
	assert.Len(t, b.RequiredComponents(), 6)

	system := &Backup{BackupType: BackupTypeSystem}
	assert.Len(t, system.RequiredComponents(), 4)
	assert.NotContains(t, system.RequiredComponents(), ComponentVolumeData)

	app := &Backup{BackupType: BackupTypeApp}
	assert.ElementsMatch(t,
		[]ComponentType{ComponentAppDefinitions, ComponentVolumeData},
		app.RequiredComponents())

	incremental := &Backup{BackupType: BackupTypeIncremental}
	assert.Len(t, incremental.RequiredComponents(), 6)
}

// TestJSONListScan tests the JSON column round trip for both driver
// representations.
func TestJSONListScan(t *testing.T) {
	var l JSONList
	require.NoError(t, l.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, JSONList{"a", "b"}, l)

	var fromString JSONList
	require.NoError(t, fromString.Scan(`["x"]`))
	assert.Equal(t, JSONList{"x"}, fromString)

	var fromNil JSONList
	require.NoError(t, fromNil.Scan(nil))
	assert.Nil(t, fromNil)

	var bad JSONList
	assert.Error(t, bad.Scan(42))
}

// TestJSONMapValue tests that nil maps serialize to SQL NULL
func TestJSONMapValue(t *testing.T) {
	var m JSONMap
	v, err := m.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	m = JSONMap{"k": "v"}
	v, err = m.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(v.([]byte)))
}

// TestSessionValid tests expiry and deactivation
func TestSessionValid(t *testing.T) {
	now := time.Now()
	s := &UserSession{IsActive: true, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, s.Valid(now))

	s.IsActive = false
	assert.False(t, s.Valid(now))

	s.IsActive = true
	assert.False(t, s.Valid(now.Add(2*time.Hour)))
}

// TestPlatformDatabaseName tests the tenant naming convention
func TestPlatformDatabaseName(t *testing.T) {
	p := &Platform{Name: "acme"}
	assert.Equal(t, "omni_p_acme", p.DatabaseName())
}
