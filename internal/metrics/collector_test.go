package metrics_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudcostguard/estimate-load/internal/metrics"
)

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordRequest(10*time.Millisecond, 200, nil)
	c.RecordRequest(20*time.Millisecond, 200, nil)
	c.RecordRequest(30*time.Millisecond, 200, nil)
	c.RecordRequest(40*time.Millisecond, 200, nil)
	c.RecordRequest(50*time.Millisecond, 200, nil)

	stats := c.Stats(0)

	if stats.Requests != 5 {
		t.Errorf("expected 5 requests, got %d", stats.Requests)
	}
	if stats.RequestFailures != 0 {
		t.Errorf("expected 0 failures, got %d", stats.RequestFailures)
	}
	d := stats.RequestDuration
	if d.Min != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", d.Min)
	}
	if d.Max != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", d.Max)
	}
	if d.Mean != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", d.Mean)
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.RecordRequest(time.Duration(i)*time.Millisecond, 200, nil)
	}

	d := c.Stats(0).RequestDuration

	if d.P50 < 49*time.Millisecond || d.P50 > 51*time.Millisecond {
		t.Errorf("expected P50 ~50ms, got %s", d.P50)
	}
	if d.P95 < 94*time.Millisecond || d.P95 > 96*time.Millisecond {
		t.Errorf("expected P95 ~95ms, got %s", d.P95)
	}
	if d.P99 < 98*time.Millisecond || d.P99 > 100*time.Millisecond {
		t.Errorf("expected P99 ~99ms, got %s", d.P99)
	}
	p75 := d.Percentile(75)
	if p75 < 74*time.Millisecond || p75 > 76*time.Millisecond {
		t.Errorf("expected P75 ~75ms, got %s", p75)
	}
}

func TestRequestFailureClassification(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordRequest(time.Millisecond, 200, nil)
	c.RecordRequest(time.Millisecond, 302, nil)
	c.RecordRequest(time.Millisecond, 404, nil)
	c.RecordRequest(time.Millisecond, 500, nil)
	c.RecordRequest(time.Millisecond, 0, errors.New("connection refused"))

	stats := c.Stats(time.Second)
	if stats.Requests != 5 {
		t.Fatalf("expected 5 requests, got %d", stats.Requests)
	}
	if stats.RequestFailures != 3 {
		t.Fatalf("expected 3 failures, got %d", stats.RequestFailures)
	}
	if got := stats.FailureRate(); got != 0.6 {
		t.Fatalf("expected failure rate 0.6, got %f", got)
	}
	if stats.StatusCodes["500"] != 1 || stats.StatusCodes["200"] != 1 {
		t.Fatalf("unexpected status codes: %v", stats.StatusCodes)
	}
	if _, ok := stats.StatusCodes["0"]; ok {
		t.Fatalf("transport errors should not produce a status bucket")
	}
	if stats.Errors["*errors.errorString"] != 1 {
		t.Fatalf("expected error breakdown entry, got %v", stats.Errors)
	}
}

func TestChecksPreserveRegistrationOrder(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordCheck("status is 200", true)
	c.RecordCheck("has total cost", false)
	c.RecordCheck("status is 200", false)
	c.RecordCheck("has total cost", true)
	c.RecordCheck("status is 200", true)

	stats := c.Stats(0)
	if len(stats.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(stats.Checks))
	}
	if stats.Checks[0].Name != "status is 200" || stats.Checks[0].Passes != 2 || stats.Checks[0].Fails != 1 {
		t.Fatalf("unexpected first check: %+v", stats.Checks[0])
	}
	if stats.Checks[1].Name != "has total cost" || stats.Checks[1].Passes != 1 || stats.Checks[1].Fails != 1 {
		t.Fatalf("unexpected second check: %+v", stats.Checks[1])
	}
	if got := stats.CheckRate(); got != 0.6 {
		t.Fatalf("expected check rate 0.6, got %f", got)
	}
}

func TestIterationsAndVUs(t *testing.T) {
	c := metrics.NewCollector()

	c.SetVUs(3)
	c.SetVUs(10)
	c.SetVUs(4)
	c.RecordIteration(time.Second, nil)
	c.RecordIteration(2*time.Second, errors.New("status 500"))
	c.RecordInterrupted()

	stats := c.Stats(2 * time.Second)
	if stats.VUs != 4 || stats.VUsMax != 10 {
		t.Fatalf("expected vus=4 vus_max=10, got %d/%d", stats.VUs, stats.VUsMax)
	}
	if stats.Iterations != 2 || stats.IterationFailures != 1 || stats.Interrupted != 1 {
		t.Fatalf("unexpected iteration counters: %+v", stats)
	}
	if stats.IterationDuration.Mean != 1500*time.Millisecond {
		t.Fatalf("expected mean iteration 1.5s, got %s", stats.IterationDuration.Mean)
	}
	if stats.IterationsPerSec != 1 {
		t.Fatalf("expected 1 iteration/s, got %f", stats.IterationsPerSec)
	}
}

func TestJSONReportSchema(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordRequest(15*time.Millisecond, 200, nil)
	c.RecordRequest(25*time.Millisecond, 500, nil)
	c.RecordCheck("status is 200", true)

	data, err := json.Marshal(c.Stats(100 * time.Millisecond))
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal stats: %v", err)
	}
	for _, key := range []string{"http_reqs", "http_req_failed", "http_req_duration", "iterations", "checks", "vus_max", "duration_ms"} {
		if _, ok := parsed[key]; !ok {
			t.Errorf("missing %q in JSON output", key)
		}
	}
	duration, ok := parsed["http_req_duration"].(map[string]interface{})
	if !ok {
		t.Fatalf("http_req_duration should be an object")
	}
	if _, ok := duration["p95_ms"]; !ok {
		t.Errorf("missing p95_ms in http_req_duration")
	}
}

func TestCollectorConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()

	const workers = 16
	const perWorker = 250
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.RecordRequest(time.Millisecond, 200, nil)
				c.RecordCheck("status is 200", true)
				c.RecordIteration(time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	stats := c.Stats(time.Second)
	if stats.Requests != workers*perWorker {
		t.Fatalf("expected %d requests, got %d", workers*perWorker, stats.Requests)
	}
	if stats.ChecksPassed != workers*perWorker {
		t.Fatalf("expected %d passed checks, got %d", workers*perWorker, stats.ChecksPassed)
	}
	if stats.Iterations != workers*perWorker {
		t.Fatalf("expected %d iterations, got %d", workers*perWorker, stats.Iterations)
	}
}
