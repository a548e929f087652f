package output

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudcostguard/estimate-load/internal/metrics"
)

type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func TestProgressLine(t *testing.T) {
	c := metrics.NewCollector()
	c.SetVUs(12)
	c.SetVUs(8)
	for i := 0; i < 5; i++ {
		c.RecordRequest(30*time.Millisecond, 200, nil)
		c.RecordIteration(time.Second, nil)
	}
	c.RecordRequest(30*time.Millisecond, 500, nil)

	line := progressLine(c.Stats(2500*time.Millisecond), 9*time.Minute)
	want := "VUs: 8/12 | Iterations: 5 | Requests: 6 | Failed: 1 | RPS: 2.4 | 2s/9m0s"
	if line != want {
		t.Errorf("progressLine = %q, want %q", line, want)
	}
}

func TestProgressReporterStopWithoutStart(t *testing.T) {
	reporter := NewProgressReporter(metrics.NewCollector(), 0, 100*time.Millisecond, nil)
	if reporter == nil {
		t.Fatal("Expected non-nil reporter")
	}
	reporter.Stop()
}

func TestProgressReporterFormatting(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	collector.RecordRequest(50*time.Millisecond, 200, nil)

	var buf syncBuffer
	reporter := NewProgressReporter(collector, time.Minute, 20*time.Millisecond, &buf)
	reporter.Start()
	reporter.Start()

	time.Sleep(100 * time.Millisecond)
	reporter.Stop()

	output := buf.String()
	if !strings.Contains(output, "\rVUs: 0/0 | Iterations: 0 | Requests: 1") {
		t.Errorf("unexpected progress output: %q", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("Stop should end the progress line")
	}
}
