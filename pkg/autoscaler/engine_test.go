package autoscaler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor records actions and serves a mutable capacity
type fakeExecutor struct {
	capacity int
	safe     bool
	execErr  error
	actions  []*ScaleAction
}

func (f *fakeExecutor) GetCurrentCapacity(ctx context.Context, resourceID string) (int, error) {
	return f.capacity, nil
}

func (f *fakeExecutor) IsSafeToScale(ctx context.Context, action *ScaleAction) (bool, error) {
	return f.safe, nil
}

func (f *fakeExecutor) ExecuteScaleAction(ctx context.Context, action *ScaleAction) error {
	if f.execErr != nil {
		return f.execErr
	}
	f.actions = append(f.actions, action)
	f.capacity = action.TargetCapacity
	return nil
}

func newTestEngine(t *testing.T, exec *fakeExecutor) (*Engine, *time.Time) {
	t.Helper()
	e := NewEngine(exec, time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return now }
	require.NoError(t, e.AddPolicy(cpuPolicy()))
	return e, &now
}

func pushCPU(e *Engine, value float64, at time.Time) {
	e.PushMetric(Metric{
		ResourceID:   "app-7",
		ResourceType: "app",
		MetricName:   "cpu_usage",
		Value:        value,
		Timestamp:    at,
	})
}

// TestEngineScaleUpWithCooldown tests the reference sequence: a breach
// scales up, a second breach inside the cooldown is suppressed, and a
// breach after the window scales again.
func TestEngineScaleUpWithCooldown(t *testing.T) {
	exec := &fakeExecutor{capacity: 3, safe: true}
	e, now := newTestEngine(t, exec)
	ctx := context.Background()

	pushCPU(e, 85, *now)
	e.EvaluateNow(ctx)
	require.Len(t, exec.actions, 1)
	assert.Equal(t, DirectionUp, exec.actions[0].Direction)
	assert.Equal(t, 3, exec.actions[0].CurrentCapacity)
	assert.Equal(t, 5, exec.actions[0].TargetCapacity) // ceil(3 * 1.5)

	// Ten seconds later the breach persists; the cooldown holds.
	*now = now.Add(10 * time.Second)
	pushCPU(e, 90, *now)
	e.EvaluateNow(ctx)
	assert.Len(t, exec.actions, 1)

	// Past the 300s window the policy fires again from the new capacity.
	*now = now.Add(300 * time.Second)
	pushCPU(e, 90, *now)
	e.EvaluateNow(ctx)
	require.Len(t, exec.actions, 2)
	assert.Equal(t, 5, exec.actions[1].CurrentCapacity)
	assert.Equal(t, 8, exec.actions[1].TargetCapacity) // ceil(5 * 1.5)
}

// TestEngineScaleDown tests the downscale path and the min clamp
func TestEngineScaleDown(t *testing.T) {
	exec := &fakeExecutor{capacity: 4, safe: true}
	e, now := newTestEngine(t, exec)
	ctx := context.Background()

	pushCPU(e, 10, *now)
	e.EvaluateNow(ctx)
	require.Len(t, exec.actions, 1)
	assert.Equal(t, DirectionDown, exec.actions[0].Direction)
	assert.Equal(t, 2, exec.actions[0].TargetCapacity) // floor(4 / 1.5)

	// At the floor a further breach projects the same capacity and the
	// engine holds instead of issuing a no-op action.
	exec.capacity = 1
	*now = now.Add(10 * time.Minute)
	pushCPU(e, 5, *now)
	e.EvaluateNow(ctx)
	assert.Len(t, exec.actions, 1)
}

// TestEngineSafetyGate tests that a vetoed action is dropped without
// anchoring a cooldown.
func TestEngineSafetyGate(t *testing.T) {
	exec := &fakeExecutor{capacity: 3, safe: false}
	e, now := newTestEngine(t, exec)
	ctx := context.Background()

	pushCPU(e, 95, *now)
	e.EvaluateNow(ctx)
	assert.Empty(t, exec.actions)

	// Once the gate opens the pending pressure scales immediately.
	exec.safe = true
	pushCPU(e, 95, *now)
	e.EvaluateNow(ctx)
	assert.Len(t, exec.actions, 1)
}

// TestEngineExecutorFailureRetries tests that a failed action leaves no
// cooldown anchor so the next pass retries.
func TestEngineExecutorFailureRetries(t *testing.T) {
	exec := &fakeExecutor{capacity: 3, safe: true, execErr: errors.New("agent unreachable")}
	e, now := newTestEngine(t, exec)
	ctx := context.Background()

	pushCPU(e, 95, *now)
	e.EvaluateNow(ctx)
	assert.Empty(t, exec.actions)

	exec.execErr = nil
	*now = now.Add(time.Second)
	e.EvaluateNow(ctx)
	require.Len(t, exec.actions, 1)
	assert.Equal(t, 5, exec.actions[0].TargetCapacity)
}

// TestEngineDisabledPolicy tests that disabled policies never fire
func TestEngineDisabledPolicy(t *testing.T) {
	exec := &fakeExecutor{capacity: 3, safe: true}
	e := NewEngine(exec, time.Minute)
	p := cpuPolicy()
	p.Enabled = false
	require.NoError(t, e.AddPolicy(p))

	pushCPU(e, 99, time.Now())
	e.EvaluateNow(context.Background())
	assert.Empty(t, exec.actions)
}

// TestEngineProviderPolling tests that provider observations feed the
// same evaluation path as pushed metrics.
func TestEngineProviderPolling(t *testing.T) {
	exec := &fakeExecutor{capacity: 3, safe: true}
	e, now := newTestEngine(t, exec)
	e.AddProvider(staticProvider{Metric{
		ResourceID:   "app-7",
		ResourceType: "app",
		MetricName:   "cpu_usage",
		Value:        90,
		Timestamp:    *now,
	}})

	e.EvaluateNow(context.Background())
	require.Len(t, exec.actions, 1)
	assert.Equal(t, 5, exec.actions[0].TargetCapacity)
}

type staticProvider struct{ m Metric }

func (s staticProvider) Collect(ctx context.Context) ([]Metric, error) {
	return []Metric{s.m}, nil
}

// TestEngineStartStop tests a clean lifecycle with the real loop
func TestEngineStartStop(t *testing.T) {
	exec := &fakeExecutor{capacity: 3, safe: true}
	e := NewEngine(exec, 10*time.Millisecond)
	require.NoError(t, e.AddPolicy(cpuPolicy()))

	e.Start()
	pushCPU(e, 85, time.Now())
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	assert.NotEmpty(t, exec.actions)
}

// TestEngineRejectsInvalidPolicy tests AddPolicy validation wiring
func TestEngineRejectsInvalidPolicy(t *testing.T) {
	e := NewEngine(&fakeExecutor{}, time.Minute)
	err := e.AddPolicy(&Policy{Name: "broken", ResourceType: "app"})
	require.Error(t, err)
}
