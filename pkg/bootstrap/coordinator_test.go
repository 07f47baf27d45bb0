package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
)

func testConfig() CloudConfig {
	return CloudConfig{
		CloudName: "edge-east",
		SSHHosts: []SshHost{
			{Name: "bastion-1", IP: "10.0.0.1", IsBastion: true},
			{Name: "worker-1", IP: "10.0.0.2"},
			{Name: "worker-2", IP: "10.0.0.3"},
		},
		EnableMonitoring: true,
	}
}

func serviceNames(h Host) []string {
	names := make([]string, 0, len(h.Services))
	for _, s := range h.Services {
		names = append(names, s.Name)
	}
	return names
}

func waitForPhase(t *testing.T, c *Coordinator, cloudName string, phase Phase) *CloudStatus {
	t.Helper()
	var status *CloudStatus
	require.Eventually(t, func() bool {
		s, err := c.Status(cloudName)
		if err != nil {
			return false
		}
		status = s
		return s.Phase == phase
	}, 5*time.Second, 5*time.Millisecond)
	return status
}

// TestCloudRollout tests the full phase sequence for a small cloud with
// monitoring enabled and backups disabled.
func TestCloudRollout(t *testing.T) {
	c := NewCoordinator()
	c.StepDelay = 0

	require.NoError(t, c.Init(context.Background(), testConfig()))
	status := waitForPhase(t, c, "edge-east", PhaseDone)

	require.NotNil(t, status.CompletedAt)
	require.Len(t, status.Hosts, 3)
	assert.Equal(t, "bastion-1", status.Hosts[0].Name)

	for _, h := range status.Hosts {
		assert.Equal(t, HostStatusCompleted, h.Status, h.Name)
		assert.True(t, h.Completed, h.Name)
		assert.Equal(t, 100, h.Progress, h.Name)
		assert.Equal(t, "Bootstrap completed", h.CurrentStep, h.Name)
	}

	assert.ElementsMatch(t,
		[]string{"orchestrator-core", "network-agent", "api-gateway", "auth-service", "metrics-collector"},
		serviceNames(status.Hosts[0]))
	for _, h := range status.Hosts[1:] {
		assert.ElementsMatch(t,
			[]string{"orchestrator-core", "network-agent", "container-runtime", "metrics-collector"},
			serviceNames(h), h.Name)
	}
}

// TestCloudRolloutWithBackups tests the backup phase and retention record
func TestCloudRolloutWithBackups(t *testing.T) {
	c := NewCoordinator()
	c.StepDelay = 0

	config := testConfig()
	config.CloudName = "edge-west"
	config.EnableBackups = true
	config.BackupRetentionDays = 14

	require.NoError(t, c.Init(context.Background(), config))
	status := waitForPhase(t, c, "edge-west", PhaseDone)

	retention, err := c.RetentionDays("edge-west")
	require.NoError(t, err)
	assert.Equal(t, 14, retention)

	// backup-manager lands on bastions only.
	assert.Contains(t, serviceNames(status.Hosts[0]), "backup-manager")
	for _, h := range status.Hosts[1:] {
		assert.NotContains(t, serviceNames(h), "backup-manager", h.Name)
	}
}

// TestInitDuplicateCloud tests that a cloud name registers exactly once
func TestInitDuplicateCloud(t *testing.T) {
	c := NewCoordinator()
	c.StepDelay = 0

	require.NoError(t, c.Init(context.Background(), testConfig()))
	err := c.Init(context.Background(), testConfig())
	require.Error(t, err)
	assert.Equal(t, apierrors.KindConflict, apierrors.KindOf(err))
}

// TestInitValidation tests config rejection before anything starts
func TestInitValidation(t *testing.T) {
	c := NewCoordinator()

	err := c.Init(context.Background(), CloudConfig{SSHHosts: []SshHost{{Name: "h"}}})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindBadRequest, apierrors.KindOf(err))

	err = c.Init(context.Background(), CloudConfig{CloudName: "no-hosts"})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindBadRequest, apierrors.KindOf(err))
}

// TestUnknownCloudAndHost tests the not-found paths
func TestUnknownCloudAndHost(t *testing.T) {
	c := NewCoordinator()
	c.StepDelay = 0

	_, err := c.Status("nowhere")
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))

	err = c.BootstrapHost("nowhere", "h1")
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))

	require.NoError(t, c.Init(context.Background(), testConfig()))
	waitForPhase(t, c, "edge-east", PhaseDone)

	err = c.BootstrapHost("edge-east", "ghost")
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))
}

// TestBootstrapHostRerun tests that a manual re-run converges to the
// same completed state without duplicating services.
func TestBootstrapHostRerun(t *testing.T) {
	c := NewCoordinator()
	c.StepDelay = 0

	require.NoError(t, c.Init(context.Background(), testConfig()))
	waitForPhase(t, c, "edge-east", PhaseDone)

	require.NoError(t, c.BootstrapHost("edge-east", "worker-1"))

	status, err := c.Status("edge-east")
	require.NoError(t, err)
	for _, h := range status.Hosts {
		if h.Name != "worker-1" {
			continue
		}
		assert.Equal(t, HostStatusCompleted, h.Status)
		assert.ElementsMatch(t,
			[]string{"orchestrator-core", "network-agent", "container-runtime", "metrics-collector"},
			serviceNames(h))
	}
}

// TestStatusSnapshotIsolation tests that mutating a snapshot does not
// leak into coordinator state.
func TestStatusSnapshotIsolation(t *testing.T) {
	c := NewCoordinator()
	c.StepDelay = 0

	require.NoError(t, c.Init(context.Background(), testConfig()))
	waitForPhase(t, c, "edge-east", PhaseDone)

	status, err := c.Status("edge-east")
	require.NoError(t, err)
	status.Hosts[0].Services[0].Name = "tampered"
	status.Hosts[0].Status = HostStatusFailed

	fresh, err := c.Status("edge-east")
	require.NoError(t, err)
	assert.NotEqual(t, "tampered", fresh.Hosts[0].Services[0].Name)
	assert.Equal(t, HostStatusCompleted, fresh.Hosts[0].Status)
}
