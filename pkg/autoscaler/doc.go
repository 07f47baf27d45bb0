/*
Package autoscaler implements the policy-driven scaling engine.

The engine owns all scaling state: latest metric values, registered
policies and per-(resource, policy) cooldown anchors. Producers never
touch that state directly; they hand observations to a buffered mailbox
and the engine goroutine folds them in.

# Architecture

	 PushMetric ──► mailbox (non-blocking, drops when full)
	                   │
	                   ▼
	┌──────────────────────────────────────────────┐
	│              engine goroutine                 │
	│                                               │
	│  tick:  poll providers ──► absorb metrics     │
	│         for each resource:                    │
	│           evaluate thresholds                 │
	│           cooldown check                      │
	│           project capacity (ceil/floor+clamp) │
	│           safety gate                         │
	│           execute action                      │
	└──────────────────────────────────────────────┘

# Decision Rules

Each threshold votes up when its metric exceeds the up threshold, down
below the down threshold, otherwise maintain. Votes combine with up
winning over down winning over maintain, so one pressured metric always
scales out even while another is idle.

Scaling up targets ceil(current * factor), scaling down
floor(current / factor), clamped into [min, max]; a zero max is
unbounded. A projection equal to the current capacity is a maintain.

A successful action anchors the policy's cooldown; further decisions for
the same (resource, policy) are suppressed until the longest threshold
cooldown has elapsed. A failed executor call does not move the anchor,
so the next tick retries.

# Usage

	engine := autoscaler.NewEngine(executor, 30*time.Second)
	engine.AddPolicy(&autoscaler.Policy{...})
	engine.AddProvider(collector)
	engine.Start()
	defer engine.Stop()

	engine.PushMetric(autoscaler.Metric{...})

Policies and providers must be registered before Start. EvaluateNow runs
one synchronous pass for tests and must not race the running loop.
*/
package autoscaler
