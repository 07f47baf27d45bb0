package autoscaler

import (
	"fmt"
	"math"
	"time"
)

// Direction is the outcome of one policy evaluation
type Direction string

const (
	DirectionUp       Direction = "up"
	DirectionDown     Direction = "down"
	DirectionMaintain Direction = "maintain"
)

// Threshold binds one metric to scale triggers
type Threshold struct {
	MetricName      string  `json:"metric_name" yaml:"metric_name"`
	UpThreshold     float64 `json:"up_threshold" yaml:"up_threshold"`
	DownThreshold   float64 `json:"down_threshold" yaml:"down_threshold"`
	ScaleFactor     float64 `json:"scale_factor" yaml:"scale_factor"`
	CooldownSeconds int     `json:"cooldown_seconds" yaml:"cooldown_seconds"`
}

// Policy is a named autoscaling rule set for one resource type
type Policy struct {
	Name         string      `json:"name" yaml:"name"`
	ResourceType string      `json:"resource_type" yaml:"resource_type"`
	Thresholds   []Threshold `json:"thresholds" yaml:"thresholds"`
	MinCapacity  int         `json:"min_capacity" yaml:"min_capacity"`
	MaxCapacity  int         `json:"max_capacity" yaml:"max_capacity"`
	Enabled      bool        `json:"enabled" yaml:"enabled"`
}

// Validate rejects policies that could never fire or that would clamp
// every decision away.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy has no name")
	}
	if p.ResourceType == "" {
		return fmt.Errorf("policy %s has no resource type", p.Name)
	}
	if len(p.Thresholds) == 0 {
		return fmt.Errorf("policy %s has no thresholds", p.Name)
	}
	for _, t := range p.Thresholds {
		if t.MetricName == "" {
			return fmt.Errorf("policy %s has a threshold without a metric name", p.Name)
		}
		if t.DownThreshold >= t.UpThreshold {
			return fmt.Errorf("policy %s threshold %s: down %v must be below up %v",
				p.Name, t.MetricName, t.DownThreshold, t.UpThreshold)
		}
		if t.ScaleFactor <= 1 {
			return fmt.Errorf("policy %s threshold %s: scale factor must exceed 1", p.Name, t.MetricName)
		}
	}
	if p.MaxCapacity > 0 && p.MinCapacity > p.MaxCapacity {
		return fmt.Errorf("policy %s: min capacity %d exceeds max %d", p.Name, p.MinCapacity, p.MaxCapacity)
	}
	return nil
}

// cooldown returns the longest cooldown among the policy's thresholds;
// one anchor per (resource, policy) keeps decisions serialized.
func (p *Policy) cooldown() time.Duration {
	max := 0
	for _, t := range p.Thresholds {
		if t.CooldownSeconds > max {
			max = t.CooldownSeconds
		}
	}
	return time.Duration(max) * time.Second
}

// Metric is one time-stamped observation for a resource
type Metric struct {
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	MetricName   string    `json:"metric_name"`
	Value        float64   `json:"value"`
	Timestamp    time.Time `json:"timestamp"`
}

// ScaleAction is one decision the engine hands to the executor
type ScaleAction struct {
	ResourceID      string    `json:"resource_id"`
	ResourceType    string    `json:"resource_type"`
	PolicyName      string    `json:"policy_name"`
	Direction       Direction `json:"direction"`
	CurrentCapacity int       `json:"current_capacity"`
	TargetCapacity  int       `json:"target_capacity"`
	Reason          string    `json:"reason"`
	Timestamp       time.Time `json:"timestamp"`
}

// candidate is one threshold's vote before combination
type candidate struct {
	direction Direction
	factor    float64
	reason    string
}

// evaluateThresholds produces the policy-local decision from the
// current metric values. Up wins over Down wins over Maintain.
func evaluateThresholds(p *Policy, values map[string]float64) candidate {
	combined := candidate{direction: DirectionMaintain}
	for _, t := range p.Thresholds {
		value, ok := values[t.MetricName]
		if !ok {
			continue
		}
		var c candidate
		switch {
		case value > t.UpThreshold:
			c = candidate{DirectionUp, t.ScaleFactor,
				fmt.Sprintf("%s=%v above %v", t.MetricName, value, t.UpThreshold)}
		case value < t.DownThreshold:
			c = candidate{DirectionDown, t.ScaleFactor,
				fmt.Sprintf("%s=%v below %v", t.MetricName, value, t.DownThreshold)}
		default:
			continue
		}
		if rank(c.direction) > rank(combined.direction) {
			combined = c
		}
	}
	return combined
}

func rank(d Direction) int {
	switch d {
	case DirectionUp:
		return 2
	case DirectionDown:
		return 1
	}
	return 0
}

// projectCapacity applies the scale factor and clamps into the policy's
// capacity bounds. A zero MaxCapacity means unbounded.
func projectCapacity(p *Policy, direction Direction, current int, factor float64) int {
	var target int
	switch direction {
	case DirectionUp:
		target = int(math.Ceil(float64(current) * factor))
	case DirectionDown:
		target = int(math.Floor(float64(current) / factor))
	default:
		return current
	}

	if target < p.MinCapacity {
		target = p.MinCapacity
	}
	if p.MaxCapacity > 0 && target > p.MaxCapacity {
		target = p.MaxCapacity
	}
	if target < 0 {
		target = 0
	}
	return target
}
