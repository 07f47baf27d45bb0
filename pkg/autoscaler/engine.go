package autoscaler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/metrics"
)

// ScalingExecutor carries scale actions out against the platform
type ScalingExecutor interface {
	// GetCurrentCapacity returns the live instance count of a resource.
	GetCurrentCapacity(ctx context.Context, resourceID string) (int, error)
	// IsSafeToScale is the safety gate consulted before every action.
	IsSafeToScale(ctx context.Context, action *ScaleAction) (bool, error)
	// ExecuteScaleAction applies the action.
	ExecuteScaleAction(ctx context.Context, action *ScaleAction) error
}

// MetricsProvider is polled once per engine tick
type MetricsProvider interface {
	Collect(ctx context.Context) ([]Metric, error)
}

// DefaultInterval is the evaluation loop period
const DefaultInterval = 30 * time.Second

type resourceKey struct {
	resourceID   string
	resourceType string
}

type cooldownKey struct {
	resourceID string
	policyName string
}

// Engine is the autoscaler control loop. It owns all policy state and
// cooldown anchors; metric producers communicate through PushMetric
// rather than touching state directly.
type Engine struct {
	executor  ScalingExecutor
	providers []MetricsProvider
	interval  time.Duration
	logger    zerolog.Logger

	policies map[string][]*Policy // resource type -> policies

	metricCh chan Metric
	stopCh   chan struct{}
	wg       sync.WaitGroup

	// current holds the latest observed value per metric; cooldowns
	// anchor the last successful action per (resource, policy). Both are
	// touched only by the engine goroutine once Start has run.
	current   map[resourceKey]map[string]float64
	cooldowns map[cooldownKey]time.Time

	Now func() time.Time
}

// NewEngine creates an autoscaler engine. interval <= 0 selects the
// default.
func NewEngine(executor ScalingExecutor, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		executor:  executor,
		interval:  interval,
		logger:    log.WithComponent("autoscaler"),
		policies:  make(map[string][]*Policy),
		metricCh:  make(chan Metric, 256),
		stopCh:    make(chan struct{}),
		current:   make(map[resourceKey]map[string]float64),
		cooldowns: make(map[cooldownKey]time.Time),
		Now:       time.Now,
	}
}

// AddProvider registers a metrics provider polled each tick. Call
// before Start.
func (e *Engine) AddProvider(p MetricsProvider) {
	e.providers = append(e.providers, p)
}

// AddPolicy validates and registers a policy. Call before Start.
func (e *Engine) AddPolicy(p *Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	e.policies[p.ResourceType] = append(e.policies[p.ResourceType], p)
	return nil
}

// PushMetric hands a metric observation to the engine. It never blocks;
// under backpressure the oldest unprocessed push is the one lost.
func (e *Engine) PushMetric(m Metric) {
	select {
	case e.metricCh <- m:
	default:
		e.logger.Warn().
			Str("resource_id", m.ResourceID).
			Str("metric", m.MetricName).
			Msg("metric mailbox full, dropping observation")
	}
}

// Start launches the evaluation loop
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.run()
	e.logger.Info().
		Dur("interval", e.interval).
		Int("resource_types", len(e.policies)).
		Msg("autoscaler started")
}

// Stop terminates the loop and waits for it to finish
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
	e.logger.Info().Msg("autoscaler stopped")
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case m := <-e.metricCh:
			e.absorb(m)
		case <-ticker.C:
			e.drainMailbox()
			e.tick(context.Background())
		}
	}
}

// drainMailbox merges every queued observation before an evaluation so
// a tick always sees the freshest values.
func (e *Engine) drainMailbox() {
	for {
		select {
		case m := <-e.metricCh:
			e.absorb(m)
		default:
			return
		}
	}
}

func (e *Engine) absorb(m Metric) {
	key := resourceKey{m.ResourceID, m.ResourceType}
	values, ok := e.current[key]
	if !ok {
		values = make(map[string]float64)
		e.current[key] = values
	}
	values[m.MetricName] = m.Value
}

// tick polls providers and evaluates every known resource. A provider
// or resource failure never stops the rest of the pass.
func (e *Engine) tick(ctx context.Context) {
	for _, provider := range e.providers {
		observed, err := provider.Collect(ctx)
		if err != nil {
			e.logger.Error().Err(err).Msg("metrics provider failed, continuing")
			continue
		}
		for _, m := range observed {
			e.absorb(m)
		}
	}

	for key, values := range e.current {
		e.evaluateResource(ctx, key, values)
	}
}

// EvaluateNow runs a single evaluation pass outside the loop. Tests and
// the push API use it; it must not run concurrently with Start.
func (e *Engine) EvaluateNow(ctx context.Context) {
	e.drainMailbox()
	e.tick(ctx)
}

func (e *Engine) evaluateResource(ctx context.Context, key resourceKey, values map[string]float64) {
	for _, policy := range e.policies[key.resourceType] {
		if !policy.Enabled {
			continue
		}
		e.evaluatePolicy(ctx, key, policy, values)
	}
}

func (e *Engine) evaluatePolicy(ctx context.Context, key resourceKey, policy *Policy, values map[string]float64) {
	logger := e.logger.With().
		Str("resource_id", key.resourceID).
		Str("policy", policy.Name).
		Logger()

	decision := evaluateThresholds(policy, values)
	if decision.direction == DirectionMaintain {
		return
	}

	// Cooldown check before any executor round trip.
	ck := cooldownKey{key.resourceID, policy.Name}
	if anchor, ok := e.cooldowns[ck]; ok {
		if elapsed := e.Now().Sub(anchor); elapsed < policy.cooldown() {
			logger.Debug().
				Dur("elapsed", elapsed).
				Msg("decision suppressed by cooldown")
			metrics.ScaleDecisionsTotal.WithLabelValues(string(DirectionMaintain)).Inc()
			return
		}
	}

	current, err := e.executor.GetCurrentCapacity(ctx, key.resourceID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read current capacity")
		return
	}

	target := projectCapacity(policy, decision.direction, current, decision.factor)
	if target == current {
		metrics.ScaleDecisionsTotal.WithLabelValues(string(DirectionMaintain)).Inc()
		return
	}

	action := &ScaleAction{
		ResourceID:      key.resourceID,
		ResourceType:    key.resourceType,
		PolicyName:      policy.Name,
		Direction:       decision.direction,
		CurrentCapacity: current,
		TargetCapacity:  target,
		Reason:          decision.reason,
		Timestamp:       e.Now(),
	}

	safe, err := e.executor.IsSafeToScale(ctx, action)
	if err != nil {
		logger.Error().Err(err).Msg("safety gate failed")
		return
	}
	if !safe {
		logger.Warn().
			Int("target", target).
			Msg("scale action rejected by safety gate")
		metrics.ScaleDecisionsTotal.WithLabelValues(string(DirectionMaintain)).Inc()
		return
	}

	if err := e.executor.ExecuteScaleAction(ctx, action); err != nil {
		// The anchor stays put so the next tick can retry.
		logger.Error().Err(err).
			Int("current", current).
			Int("target", target).
			Msg("scale action failed")
		metrics.ScaleActionErrors.Inc()
		return
	}

	e.cooldowns[ck] = e.Now()
	metrics.ScaleDecisionsTotal.WithLabelValues(string(action.Direction)).Inc()
	logger.Info().
		Str("direction", string(action.Direction)).
		Int("current", current).
		Int("target", target).
		Str("reason", action.Reason).
		Msg("scale action executed")
}
