// Package hostmon samples the load generator's own CPU and memory use so a
// saturated generator can be told apart from a slow endpoint.
package hostmon

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

const (
	DefaultInterval     = 2 * time.Second
	DefaultCPUThreshold = 90.0
)

// Sample is one CPU and memory reading, both in percent.
type Sample struct {
	CPUPercent float64
	MemPercent float64
}

// SampleFunc takes one reading.
type SampleFunc func(ctx context.Context) (Sample, error)

// Summary aggregates the samples of one run.
type Summary struct {
	Samples    int     `json:"samples"`
	CPUAvg     float64 `json:"cpu_avg_percent"`
	CPUMax     float64 `json:"cpu_max_percent"`
	MemMax     float64 `json:"mem_max_percent"`
	Saturated  bool    `json:"saturated"`
	Threshold  float64 `json:"cpu_threshold_percent"`
	SampleErrs int     `json:"sample_errors,omitempty"`
}

type Options struct {
	Interval     time.Duration
	CPUThreshold float64
	Logger       *zap.Logger
	Sample       SampleFunc // defaults to gopsutil
}

// Monitor collects samples until its context ends.
type Monitor struct {
	opts Options

	mu        sync.Mutex
	summary   Summary
	cpuSum    float64
	saturated bool // currently above threshold
}

func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CPUThreshold <= 0 {
		opts.CPUThreshold = DefaultCPUThreshold
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sample == nil {
		opts.Sample = SystemSample
	}
	return &Monitor{opts: opts, summary: Summary{Threshold: opts.CPUThreshold}}
}

// SystemSample reads whole-host CPU and virtual memory usage. CPU is measured
// since the previous call, so the first reading after start-up is coarse.
func SystemSample(ctx context.Context) (Sample, error) {
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Sample{}, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, err
	}
	s := Sample{MemPercent: vm.UsedPercent}
	if len(pcts) > 0 {
		s.CPUPercent = pcts[0]
	}
	return s, nil
}

// Run samples every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleOnce(ctx)
		}
	}
}

func (m *Monitor) sampleOnce(ctx context.Context) {
	s, err := m.opts.Sample(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.summary.SampleErrs++
		m.opts.Logger.Debug("host sample failed", zap.Error(err))
		return
	}
	m.observe(s)
}

// observe folds s into the summary. Callers hold mu.
func (m *Monitor) observe(s Sample) {
	m.summary.Samples++
	m.cpuSum += s.CPUPercent
	m.summary.CPUAvg = m.cpuSum / float64(m.summary.Samples)
	if s.CPUPercent > m.summary.CPUMax {
		m.summary.CPUMax = s.CPUPercent
	}
	if s.MemPercent > m.summary.MemMax {
		m.summary.MemMax = s.MemPercent
	}

	above := s.CPUPercent >= m.opts.CPUThreshold
	if above && !m.saturated {
		m.summary.Saturated = true
		m.opts.Logger.Warn("load generator CPU is saturated, latency figures may be inflated",
			zap.Float64("cpu_percent", s.CPUPercent),
			zap.Float64("threshold_percent", m.opts.CPUThreshold),
		)
	}
	m.saturated = above
}

// Summary returns the aggregate of all samples so far.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}
