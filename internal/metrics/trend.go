package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Track durations from 1µs up to 10 minutes with 3 significant figures.
const (
	histLowestUs  = 1
	histHighestUs = 600_000_000
	histSigFigs   = 3
)

// trend accumulates a duration distribution. Callers hold the collector lock.
type trend struct {
	hist  *hdrhistogram.Histogram
	count int64
	min   time.Duration
	max   time.Duration
	sum   time.Duration
}

func newTrend() *trend {
	return &trend{hist: hdrhistogram.New(histLowestUs, histHighestUs, histSigFigs)}
}

func (t *trend) add(d time.Duration) {
	if d < 0 {
		d = 0
	}
	us := d.Microseconds()
	if us < t.hist.LowestTrackableValue() {
		us = t.hist.LowestTrackableValue()
	}
	if us > t.hist.HighestTrackableValue() {
		us = t.hist.HighestTrackableValue()
	}
	_ = t.hist.RecordValue(us)

	t.count++
	t.sum += d
	if t.count == 1 || d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
}

// TrendStats summarises a duration distribution.
type TrendStats struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"-"`
	Max   time.Duration `json:"-"`
	Mean  time.Duration `json:"-"`
	P50   time.Duration `json:"-"`
	P90   time.Duration `json:"-"`
	P95   time.Duration `json:"-"`
	P99   time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	MeanMs float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P90Ms  float64 `json:"p90_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`

	snapshot *hdrhistogram.Histogram
}

func (t *trend) stats() TrendStats {
	s := TrendStats{
		Count: t.count,
		Min:   t.min,
		Max:   t.max,
	}
	if t.count > 0 {
		s.Mean = time.Duration(int64(t.sum) / t.count)
	}
	if t.hist.TotalCount() > 0 {
		s.P50 = quantile(t.hist, 50)
		s.P90 = quantile(t.hist, 90)
		s.P95 = quantile(t.hist, 95)
		s.P99 = quantile(t.hist, 99)
		s.snapshot = hdrhistogram.Import(t.hist.Export())
	}
	s.MinMs = toMs(s.Min)
	s.MaxMs = toMs(s.Max)
	s.MeanMs = toMs(s.Mean)
	s.P50Ms = toMs(s.P50)
	s.P90Ms = toMs(s.P90)
	s.P95Ms = toMs(s.P95)
	s.P99Ms = toMs(s.P99)
	return s
}

// Percentile returns the duration at percentile p (0-100). Values outside the
// fixed P50/P90/P95/P99 set are answered from a histogram snapshot when one
// is available.
func (s TrendStats) Percentile(p float64) time.Duration {
	switch p {
	case 50:
		return s.P50
	case 90:
		return s.P90
	case 95:
		return s.P95
	case 99:
		return s.P99
	}
	if s.snapshot == nil {
		return 0
	}
	if p <= 0 {
		return s.Min
	}
	if p >= 100 {
		return s.Max
	}
	return quantile(s.snapshot, p)
}

func quantile(h *hdrhistogram.Histogram, p float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(p)) * time.Microsecond
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
