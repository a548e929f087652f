package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/cloudcostguard/estimate-load/internal/metrics"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector *metrics.Collector
	planned   time.Duration
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a progress reporter that updates at the given
// interval. planned is the length of the load plan; zero hides it.
func NewProgressReporter(collector *metrics.Collector, planned, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		planned:   planned,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and ends the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			elapsed := p.collector.Elapsed()
			fmt.Fprint(p.writer, "\r"+progressLine(p.collector.Stats(elapsed), p.planned))
		case <-p.done:
			return
		}
	}
}

func progressLine(stats metrics.Stats, planned time.Duration) string {
	line := fmt.Sprintf("VUs: %d/%d | Iterations: %d | Requests: %d | Failed: %d | RPS: %.1f",
		stats.VUs, stats.VUsMax, stats.Iterations, stats.Requests, stats.RequestFailures, stats.RequestsPerSec)
	elapsed := stats.Duration.Truncate(time.Second)
	if planned > 0 {
		line += fmt.Sprintf(" | %s/%s", elapsed, planned)
	} else {
		line += fmt.Sprintf(" | %s", elapsed)
	}
	return line
}
