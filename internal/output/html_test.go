package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/cloudcostguard/estimate-load/internal/hostmon"
	"github.com/cloudcostguard/estimate-load/internal/metrics"
)

func TestWriteHTMLReport(t *testing.T) {
	stats := sampleStats()
	s := Summary{
		RunID:  "01J0000000000000000000TEST",
		Target: "http://localhost:8080/estimate",
		Stats:  stats,
		Thresholds: evaluate(t, stats, map[string][]string{
			"http_req_duration": {"p(95)<500"},
			"http_req_failed":   {"rate<0.001"},
		}),
		Host: &hostmon.Summary{Samples: 2, CPUAvg: 35, CPUMax: 50, MemMax: 20, Threshold: 90},
	}
	history := []metrics.DataPoint{
		{Timestamp: time.Now(), ElapsedSec: 1, VUs: 5, Requests: 40, CurrentRPS: 40, P50Ms: 110, P95Ms: 120, P99Ms: 125},
		{Timestamp: time.Now(), ElapsedSec: 2, VUs: 10, Requests: 100, CurrentRPS: 60, P50Ms: 112, P95Ms: 121, P99Ms: 130},
	}

	var buf bytes.Buffer
	if err := WriteHTMLReport(&buf, s, history); err != nil {
		t.Fatalf("WriteHTMLReport() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		"Estimate Load Test Report",
		"http://localhost:8080/estimate",
		"01J0000000000000000000TEST",
		"status is 200",
		"has total cost",
		"p(95)&lt;500",
		"rate&lt;0.001",
		"✗ FAIL",
		"✓ PASS",
		"FAIL</div>",
		"HTTP 200",
		"HTTP 503",
		"Load Generator",
		"load-chart",
		"uPlot",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriteHTMLReportWithoutHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTMLReport(&buf, Summary{Stats: sampleStats()}, nil); err != nil {
		t.Fatalf("WriteHTMLReport() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "load-chart") || strings.Contains(out, "uPlot") {
		t.Errorf("charts rendered without history")
	}
	if strings.Contains(out, "Load Generator") {
		t.Errorf("load generator section rendered without host samples")
	}
	if !strings.Contains(out, "PASS</div>") {
		t.Errorf("run without thresholds should pass")
	}
}

func TestWriteHTMLReportEscapesData(t *testing.T) {
	var buf bytes.Buffer
	s := Summary{Target: `http://x/<script>alert(1)</script>`, Stats: sampleStats()}
	if err := WriteHTMLReport(&buf, s, nil); err != nil {
		t.Fatalf("WriteHTMLReport() error = %v", err)
	}
	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Errorf("target was not escaped")
	}
}
