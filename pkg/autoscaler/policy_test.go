package autoscaler

import (
	"strings"
	"testing"
)

func cpuPolicy() *Policy {
	return &Policy{
		Name:         "web-cpu",
		ResourceType: "app",
		MinCapacity:  1,
		MaxCapacity:  10,
		Enabled:      true,
		Thresholds: []Threshold{
			{MetricName: "cpu_usage", UpThreshold: 80, DownThreshold: 30, ScaleFactor: 1.5, CooldownSeconds: 300},
		},
	}
}

// TestEvaluateThresholds tests per-metric decisions and combination
func TestEvaluateThresholds(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]float64
		want   Direction
	}{
		{"above up", map[string]float64{"cpu_usage": 85}, DirectionUp},
		{"at up boundary", map[string]float64{"cpu_usage": 80}, DirectionMaintain},
		{"in band", map[string]float64{"cpu_usage": 55}, DirectionMaintain},
		{"at down boundary", map[string]float64{"cpu_usage": 30}, DirectionMaintain},
		{"below down", map[string]float64{"cpu_usage": 10}, DirectionDown},
		{"metric absent", map[string]float64{"memory_usage": 99}, DirectionMaintain},
		{"no values", map[string]float64{}, DirectionMaintain},
	}

	p := cpuPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateThresholds(p, tt.values)
			if got.direction != tt.want {
				t.Errorf("evaluateThresholds(%v) = %s, want %s", tt.values, got.direction, tt.want)
			}
		})
	}
}

// TestEvaluateThresholdsUpBeatsDown tests the combination rule when two
// thresholds disagree.
func TestEvaluateThresholdsUpBeatsDown(t *testing.T) {
	p := cpuPolicy()
	p.Thresholds = append(p.Thresholds, Threshold{
		MetricName: "memory_usage", UpThreshold: 90, DownThreshold: 40, ScaleFactor: 2, CooldownSeconds: 300,
	})

	// CPU wants down, memory wants up; up must win regardless of order.
	got := evaluateThresholds(p, map[string]float64{"cpu_usage": 10, "memory_usage": 95})
	if got.direction != DirectionUp {
		t.Fatalf("combined direction = %s, want up", got.direction)
	}
	if got.factor != 2 {
		t.Errorf("combined factor = %v, want the up threshold's factor 2", got.factor)
	}
}

// TestProjectCapacity tests rounding and clamping in both directions
func TestProjectCapacity(t *testing.T) {
	tests := []struct {
		name      string
		direction Direction
		current   int
		factor    float64
		min, max  int
		want      int
	}{
		{"up rounds up", DirectionUp, 3, 1.5, 1, 10, 5},
		{"up exact", DirectionUp, 4, 2, 1, 10, 8},
		{"up clamped to max", DirectionUp, 8, 1.5, 1, 10, 10},
		{"up unbounded max", DirectionUp, 8, 1.5, 1, 0, 12},
		{"down rounds down", DirectionDown, 5, 1.5, 1, 10, 3},
		{"down clamped to min", DirectionDown, 2, 3, 2, 10, 2},
		{"maintain untouched", DirectionMaintain, 7, 1.5, 1, 10, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := cpuPolicy()
			p.MinCapacity = tt.min
			p.MaxCapacity = tt.max
			if got := projectCapacity(p, tt.direction, tt.current, tt.factor); got != tt.want {
				t.Errorf("projectCapacity(%s, %d, %v) = %d, want %d",
					tt.direction, tt.current, tt.factor, got, tt.want)
			}
		})
	}
}

// TestPolicyValidate tests the rejection rules
func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Policy)
		wantErr string
	}{
		{"valid", func(p *Policy) {}, ""},
		{"no name", func(p *Policy) { p.Name = "" }, "no name"},
		{"no resource type", func(p *Policy) { p.ResourceType = "" }, "no resource type"},
		{"no thresholds", func(p *Policy) { p.Thresholds = nil }, "no thresholds"},
		{"inverted band", func(p *Policy) { p.Thresholds[0].DownThreshold = 90 }, "must be below"},
		{"factor too small", func(p *Policy) { p.Thresholds[0].ScaleFactor = 1 }, "must exceed 1"},
		{"min above max", func(p *Policy) { p.MinCapacity = 20 }, "exceeds max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := cpuPolicy()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestPolicyCooldown tests that the longest threshold cooldown wins
func TestPolicyCooldown(t *testing.T) {
	p := cpuPolicy()
	p.Thresholds = append(p.Thresholds, Threshold{
		MetricName: "memory_usage", UpThreshold: 90, DownThreshold: 40, ScaleFactor: 2, CooldownSeconds: 600,
	})
	if got := p.cooldown(); got.Seconds() != 600 {
		t.Errorf("cooldown() = %v, want 10m", got)
	}
}
