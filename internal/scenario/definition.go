// Package scenario defines the estimate load test: the staged virtual-user
// plan, the pass/fail thresholds and the per-iteration workload that posts a
// synthetic plan to the cost estimation endpoint.
package scenario

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cloudcostguard/estimate-load/internal/config"
	"github.com/cloudcostguard/estimate-load/internal/runner"
	"github.com/cloudcostguard/estimate-load/internal/threshold"
)

// LoadPlan is the ordered list of stages driving the VU count.
type LoadPlan []runner.Stage

// Duration is the sum of all stage durations.
func (p LoadPlan) Duration() time.Duration {
	var total time.Duration
	for _, s := range p {
		total += s.Duration
	}
	return total
}

// Thresholds maps a metric name to the expressions it must satisfy.
type Thresholds map[string][]string

// Metrics returns the metric names in sorted order.
func (t Thresholds) Metrics() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definition is everything the runner needs to execute the scenario.
type Definition struct {
	Stages     LoadPlan
	Thresholds Thresholds
	Workload   runner.Workload
}

// DefaultStages ramps to 100 VUs over 2m, holds for 5m and ramps down to 0
// over 2m.
func DefaultStages() LoadPlan {
	return LoadPlan{
		{Duration: 2 * time.Minute, Target: 100},
		{Duration: 5 * time.Minute, Target: 100},
		{Duration: 2 * time.Minute, Target: 0},
	}
}

// DefaultThresholds requires p95 latency under 500ms and fewer than 1% of
// requests failing.
func DefaultThresholds() Thresholds {
	return Thresholds{
		"http_req_duration": {"p(95)<500"},
		"http_req_failed":   {"rate<0.01"},
	}
}

// Default returns the canonical definition with configured overrides applied.
// Configured stages replace the whole plan; configured thresholds replace the
// defaults for the metrics they name. The workload is left for the caller.
func Default(cfg *config.Config) Definition {
	def := Definition{
		Stages:     DefaultStages(),
		Thresholds: DefaultThresholds(),
	}
	if cfg == nil {
		return def
	}
	if len(cfg.Stages) > 0 {
		stages := make(LoadPlan, 0, len(cfg.Stages))
		for _, s := range cfg.Stages {
			stages = append(stages, runner.Stage{Duration: s.Duration, Target: s.Target})
		}
		def.Stages = stages
	}
	for metric, exprs := range cfg.Thresholds {
		def.Thresholds[metric] = append([]string(nil), exprs...)
	}
	return def
}

// Validate checks the plan and parses every threshold. It returns the parsed
// thresholds so the caller does not parse them twice.
func (d Definition) Validate() ([]threshold.Threshold, error) {
	if len(d.Stages) == 0 {
		return nil, errors.New("load plan must contain at least one stage")
	}
	for i, s := range d.Stages {
		if s.Duration < 0 {
			return nil, fmt.Errorf("stage %d: duration must be >= 0, got %s", i+1, s.Duration)
		}
		if s.Target < 0 {
			return nil, fmt.Errorf("stage %d: target must be >= 0, got %d", i+1, s.Target)
		}
	}
	if d.Stages.Duration() <= 0 {
		return nil, errors.New("load plan must last longer than zero")
	}
	parsed, err := threshold.ParseSet(d.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("thresholds: %w", err)
	}
	return parsed, nil
}
