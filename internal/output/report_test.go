package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cloudcostguard/estimate-load/internal/hostmon"
	"github.com/cloudcostguard/estimate-load/internal/metrics"
	"github.com/cloudcostguard/estimate-load/internal/threshold"
)

func sampleStats() metrics.Stats {
	c := metrics.NewCollector()
	for i := 0; i < 99; i++ {
		c.RecordRequest(120*time.Millisecond, 200, nil)
		c.RecordCheck("status is 200", true)
		c.RecordCheck("has total cost", true)
		c.RecordIteration(time.Second+120*time.Millisecond, nil)
	}
	c.RecordRequest(80*time.Millisecond, 503, nil)
	c.RecordCheck("status is 200", false)
	c.RecordCheck("has total cost", false)
	c.RecordIteration(time.Second+80*time.Millisecond, nil)
	c.SetVUs(10)
	c.SetVUs(0)
	return c.Stats(10 * time.Second)
}

func evaluate(t *testing.T, stats metrics.Stats, set map[string][]string) []threshold.Result {
	t.Helper()
	parsed, err := threshold.ParseSet(set)
	if err != nil {
		t.Fatalf("ParseSet: %v", err)
	}
	return threshold.NewEvaluator(parsed).Evaluate(stats)
}

func TestPrintReportBasic(t *testing.T) {
	stats := sampleStats()
	summary := Summary{
		RunID:  "01J0000000000000000000000A",
		Target: "http://localhost:8080/estimate",
		Stats:  stats,
		Thresholds: evaluate(t, stats, map[string][]string{
			"http_req_duration": {"p(95)<500"},
			"http_req_failed":   {"rate<0.01"},
		}),
	}

	var buf bytes.Buffer
	PrintReport(&buf, summary)
	output := buf.String()

	for _, want := range []string{
		"Target:            http://localhost:8080/estimate",
		"✗ status is 200",
		"↳  99.00% ✓ 99 / ✗ 1",
		"checks....",
		"http_req_duration",
		"http_req_failed...........: 1.00% ✓ 1 ✗ 99",
		"http_reqs.................: 100 10.00/s",
		"vus_max...................: 10",
		"HTTP 200: 99",
		"HTTP 503: 1",
		"✓ http_req_duration: p(95)<500",
		"✗ http_req_failed: rate<0.01",
		"Some thresholds have failed",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in report:\n%s", want, output)
		}
	}
	if summary.Passed() {
		t.Error("expected summary to fail")
	}
}

func TestPrintReportAllChecksPass(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordRequest(10*time.Millisecond, 200, nil)
	c.RecordCheck("status is 200", true)

	var buf bytes.Buffer
	PrintReport(&buf, Summary{Stats: c.Stats(time.Second)})
	output := buf.String()

	if !strings.Contains(output, "✓ status is 200") {
		t.Errorf("expected passing check line:\n%s", output)
	}
	if strings.Contains(output, "↳") {
		t.Errorf("passing check should have no breakdown:\n%s", output)
	}
	if strings.Contains(output, "Thresholds:") {
		t.Errorf("no thresholds section expected:\n%s", output)
	}
}

func TestPrintReportHostAndErrors(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordRequest(time.Millisecond, 0, errTimeout{})
	stats := c.Stats(time.Second)

	var buf bytes.Buffer
	PrintReport(&buf, Summary{
		Stats:     stats,
		Cancelled: true,
		Host:      &hostmon.Summary{Samples: 3, CPUAvg: 93, CPUMax: 99, MemMax: 40, Saturated: true, Threshold: 90},
	})
	output := buf.String()

	for _, want := range []string{"cancelled", "Errors:", "Load Generator:", "CPU avg/max:     93.0% / 99.0%", "WARNING"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in report:\n%s", want, output)
		}
	}
}

type errTimeout struct{}

func (errTimeout) Error() string { return "timeout" }

func TestPrintJSONReport(t *testing.T) {
	stats := sampleStats()
	summary := Summary{
		RunID:  "01J0000000000000000000000A",
		Stats:  stats,
		Thresholds: evaluate(t, stats, map[string][]string{
			"http_req_duration": {"p(95)<500"},
		}),
	}

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, summary); err != nil {
		t.Fatalf("PrintJSONReport failed: %v", err)
	}

	var decoded struct {
		RunID   string `json:"run_id"`
		Passed  bool   `json:"passed"`
		Metrics struct {
			Requests int64 `json:"http_reqs"`
			Checks   []struct {
				Name  string `json:"name"`
				Fails int64  `json:"fails"`
			} `json:"checks"`
		} `json:"metrics"`
		Thresholds []struct {
			Metric string `json:"metric"`
			Pass   bool   `json:"pass"`
		} `json:"thresholds"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.RunID != summary.RunID || !decoded.Passed {
		t.Errorf("unexpected header: %+v", decoded)
	}
	if decoded.Metrics.Requests != 100 || len(decoded.Metrics.Checks) != 2 {
		t.Errorf("unexpected metrics: %+v", decoded.Metrics)
	}
	if len(decoded.Thresholds) != 1 || decoded.Thresholds[0].Metric != "http_req_duration" || !decoded.Thresholds[0].Pass {
		t.Errorf("unexpected thresholds: %+v", decoded.Thresholds)
	}
	if strings.Contains(buf.String(), "load_generator") {
		t.Error("host summary should be omitted when absent")
	}
}
