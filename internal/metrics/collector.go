package metrics

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Collector records per-request, per-iteration and per-check observations
// in a thread-safe manner.
type Collector struct {
	mu sync.Mutex

	requests     *trend
	reqFailures  int64
	statusCodes  map[string]int64
	errorsByType map[string]int64

	iterations   *trend
	iterFailures int64
	interrupted  int64

	checkOrder []string
	checks     map[string]*CheckStats

	vus    int
	vusMax int

	history      []DataPoint
	lastSnapReqs int64
	lastSnapAt   time.Duration

	start time.Time
}

// CheckStats counts the outcomes of one named check.
type CheckStats struct {
	Name   string `json:"name"`
	Passes int64  `json:"passes"`
	Fails  int64  `json:"fails"`
}

// Stats represents aggregated metrics.
type Stats struct {
	Requests        int64          `json:"http_reqs"`
	RequestFailures int64          `json:"http_req_failed"`
	RequestsPerSec  float64        `json:"http_reqs_per_sec"`
	RequestDuration TrendStats     `json:"http_req_duration"`
	StatusCodes     map[string]int `json:"status_codes,omitempty"`
	Errors          map[string]int `json:"errors,omitempty"`

	Iterations        int64      `json:"iterations"`
	IterationFailures int64      `json:"iteration_failures"`
	Interrupted       int64      `json:"interrupted_iterations"`
	IterationsPerSec  float64    `json:"iterations_per_sec"`
	IterationDuration TrendStats `json:"iteration_duration"`

	Checks       []CheckStats `json:"checks,omitempty"`
	ChecksPassed int64        `json:"checks_passed"`
	ChecksFailed int64        `json:"checks_failed"`

	VUs    int `json:"vus"`
	VUsMax int `json:"vus_max"`

	Duration   time.Duration `json:"-"`
	DurationMs float64       `json:"duration_ms"`
}

// FailureRate is the share of requests counted as failed.
func (s Stats) FailureRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.RequestFailures) / float64(s.Requests)
}

// CheckRate is the share of passing check evaluations.
func (s Stats) CheckRate() float64 {
	total := s.ChecksPassed + s.ChecksFailed
	if total == 0 {
		return 0
	}
	return float64(s.ChecksPassed) / float64(total)
}

func NewCollector() *Collector {
	return &Collector{
		requests:     newTrend(),
		iterations:   newTrend(),
		statusCodes:  make(map[string]int64),
		errorsByType: make(map[string]int64),
		checks:       make(map[string]*CheckStats),
		start:        time.Now(),
	}
}

// Start marks the beginning of the measured run.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.history = nil
	c.lastSnapReqs = c.requests.count
	c.lastSnapAt = 0
	c.mu.Unlock()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordRequest records a single request. A request fails when it produced
// a transport error or a status outside 1xx-3xx.
func (c *Collector) RecordRequest(latency time.Duration, status int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests.add(latency)
	if status > 0 {
		c.statusCodes[strconv.Itoa(status)]++
	}
	if err != nil || status <= 0 || status >= 400 {
		c.reqFailures++
	}
	if err != nil {
		errorType := fmt.Sprintf("%T", err)
		if len(errorType) > 30 {
			errorType = errorType[len(errorType)-30:]
		}
		c.errorsByType[errorType]++
	}
}

// RecordIteration records one completed workload iteration.
func (c *Collector) RecordIteration(duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.iterations.add(duration)
	if err != nil {
		c.iterFailures++
	}
}

// RecordInterrupted counts an iteration cut short by the runner.
func (c *Collector) RecordInterrupted() {
	c.mu.Lock()
	c.interrupted++
	c.mu.Unlock()
}

// RecordCheck records the outcome of a named check.
func (c *Collector) RecordCheck(name string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs, exists := c.checks[name]
	if !exists {
		cs = &CheckStats{Name: name}
		c.checks[name] = cs
		c.checkOrder = append(c.checkOrder, name)
	}
	if ok {
		cs.Passes++
	} else {
		cs.Fails++
	}
}

// SetVUs records the current number of active virtual users.
func (c *Collector) SetVUs(active int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if active < 0 {
		active = 0
	}
	c.vus = active
	if active > c.vusMax {
		c.vusMax = active
	}
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Requests:          c.requests.count,
		RequestFailures:   c.reqFailures,
		RequestDuration:   c.requests.stats(),
		Iterations:        c.iterations.count,
		IterationFailures: c.iterFailures,
		Interrupted:       c.interrupted,
		IterationDuration: c.iterations.stats(),
		VUs:               c.vus,
		VUsMax:            c.vusMax,
		Duration:          elapsed,
		DurationMs:        toMs(elapsed),
	}

	if elapsed > 0 {
		stats.RequestsPerSec = float64(stats.Requests) / elapsed.Seconds()
		stats.IterationsPerSec = float64(stats.Iterations) / elapsed.Seconds()
	}

	if len(c.statusCodes) > 0 {
		stats.StatusCodes = make(map[string]int, len(c.statusCodes))
		for k, v := range c.statusCodes {
			stats.StatusCodes[k] = int(v)
		}
	}
	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}

	if len(c.checkOrder) > 0 {
		stats.Checks = make([]CheckStats, 0, len(c.checkOrder))
		for _, name := range c.checkOrder {
			cs := *c.checks[name]
			stats.Checks = append(stats.Checks, cs)
			stats.ChecksPassed += cs.Passes
			stats.ChecksFailed += cs.Fails
		}
	}

	return stats
}

// GetErrorBreakdown returns a map of error types to their counts.
func (c *Collector) GetErrorBreakdown() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		result[k] = int(v)
	}
	return result
}
