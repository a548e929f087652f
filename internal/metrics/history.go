package metrics

import "time"

// maxHistory bounds the retained snapshots; the oldest are dropped first.
const maxHistory = 3600

// DataPoint is one point-in-time sample of a run, used for charts.
type DataPoint struct {
	Timestamp   time.Time     `json:"timestamp"`
	Elapsed     time.Duration `json:"-"`
	ElapsedSec  float64       `json:"elapsed_s"`
	VUs         int           `json:"vus"`
	Requests    int64         `json:"http_reqs"`
	Failures    int64         `json:"http_req_failed"`
	CurrentRPS  float64       `json:"current_rps"`
	FailureRate float64       `json:"failure_rate"`
	P50Ms       float64       `json:"p50_latency_ms"`
	P95Ms       float64       `json:"p95_latency_ms"`
	P99Ms       float64       `json:"p99_latency_ms"`
}

// Snapshot records the current state in the run history and returns it.
// CurrentRPS covers the window since the previous snapshot; percentiles are
// cumulative since Start.
func (c *Collector) Snapshot() DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(c.start)
	dp := DataPoint{
		Timestamp:  now,
		Elapsed:    elapsed,
		ElapsedSec: elapsed.Seconds(),
		VUs:        c.vus,
		Requests:   c.requests.count,
		Failures:   c.reqFailures,
	}
	if window := elapsed - c.lastSnapAt; window > 0 {
		dp.CurrentRPS = float64(c.requests.count-c.lastSnapReqs) / window.Seconds()
	}
	if c.requests.count > 0 {
		dp.FailureRate = float64(c.reqFailures) / float64(c.requests.count)
	}
	if c.requests.hist.TotalCount() > 0 {
		dp.P50Ms = toMs(quantile(c.requests.hist, 50))
		dp.P95Ms = toMs(quantile(c.requests.hist, 95))
		dp.P99Ms = toMs(quantile(c.requests.hist, 99))
	}

	c.lastSnapReqs = c.requests.count
	c.lastSnapAt = elapsed
	c.history = append(c.history, dp)
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
	return dp
}

// History returns a copy of the recorded snapshots, oldest first.
func (c *Collector) History() []DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DataPoint(nil), c.history...)
}
