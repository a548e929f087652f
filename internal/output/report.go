package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cloudcostguard/estimate-load/internal/hostmon"
	"github.com/cloudcostguard/estimate-load/internal/metrics"
	"github.com/cloudcostguard/estimate-load/internal/threshold"
)

// Summary is everything the end-of-run report shows.
type Summary struct {
	RunID      string
	Target     string
	Stats      metrics.Stats
	Thresholds []threshold.Result
	Host       *hostmon.Summary
	Cancelled  bool
}

// Passed reports whether every threshold held.
func (s Summary) Passed() bool {
	return threshold.Passed(s.Thresholds)
}

const metricNameWidth = 26

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, s Summary) {
	stats := s.Stats
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	if s.RunID != "" {
		fmt.Fprintf(w, "Run:               %s\n", s.RunID)
	}
	if s.Target != "" {
		fmt.Fprintf(w, "Target:            %s\n", s.Target)
	}
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration.Round(time.Millisecond))
	if s.Cancelled {
		fmt.Fprintln(w, "Status:            cancelled before the plan finished")
	}

	if len(stats.Checks) > 0 {
		fmt.Fprintln(w)
		for _, c := range stats.Checks {
			writeCheck(w, c)
		}
	}

	fmt.Fprintln(w)
	if total := stats.ChecksPassed + stats.ChecksFailed; total > 0 {
		writeMetric(w, "checks", fmt.Sprintf("%s ✓ %d ✗ %d", percent(stats.CheckRate()), stats.ChecksPassed, stats.ChecksFailed))
	}
	writeMetric(w, "http_req_duration", trendLine(stats.RequestDuration))
	writeMetric(w, "http_req_failed", fmt.Sprintf("%s ✓ %d ✗ %d", percent(stats.FailureRate()), stats.RequestFailures, stats.Requests-stats.RequestFailures))
	writeMetric(w, "http_reqs", fmt.Sprintf("%d %.2f/s", stats.Requests, stats.RequestsPerSec))
	writeMetric(w, "iteration_duration", trendLine(stats.IterationDuration))
	writeMetric(w, "iterations", fmt.Sprintf("%d %.2f/s", stats.Iterations, stats.IterationsPerSec))
	if stats.Interrupted > 0 {
		writeMetric(w, "interrupted_iterations", fmt.Sprintf("%d", stats.Interrupted))
	}
	writeMetric(w, "vus", fmt.Sprintf("%d", stats.VUs))
	writeMetric(w, "vus_max", fmt.Sprintf("%d", stats.VUsMax))

	if rows := metrics.SortedStatusCodes(stats.StatusCodes); len(rows) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		for _, row := range rows {
			fmt.Fprintf(w, "  HTTP %s: %d\n", row.Code, row.Count)
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		types := make([]string, 0, len(stats.Errors))
		for t := range stats.Errors {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool {
			if stats.Errors[types[i]] == stats.Errors[types[j]] {
				return types[i] < types[j]
			}
			return stats.Errors[types[i]] > stats.Errors[types[j]]
		})
		for _, t := range types {
			fmt.Fprintf(w, "  %s: %d\n", metrics.FriendlyErrorName(t), stats.Errors[t])
		}
	}

	if s.Host != nil && s.Host.Samples > 0 {
		fmt.Fprintln(w, "\nLoad Generator:")
		fmt.Fprintf(w, "  CPU avg/max:     %.1f%% / %.1f%%\n", s.Host.CPUAvg, s.Host.CPUMax)
		fmt.Fprintf(w, "  Memory max:      %.1f%%\n", s.Host.MemMax)
		if s.Host.Saturated {
			fmt.Fprintf(w, "  WARNING: CPU reached %.0f%%; results may reflect the generator, not the endpoint\n", s.Host.Threshold)
		}
	}

	if len(s.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, r := range s.Thresholds {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
		if s.Passed() {
			fmt.Fprintln(w, "\nAll thresholds passed")
		} else {
			fmt.Fprintln(w, "\nSome thresholds have failed")
		}
	}
}

func writeCheck(w io.Writer, c metrics.CheckStats) {
	total := c.Passes + c.Fails
	if c.Fails == 0 {
		fmt.Fprintf(w, "  ✓ %s\n", c.Name)
		return
	}
	fmt.Fprintf(w, "  ✗ %s\n", c.Name)
	rate := 0.0
	if total > 0 {
		rate = float64(c.Passes) / float64(total)
	}
	fmt.Fprintf(w, "   ↳  %s ✓ %d / ✗ %d\n", percent(rate), c.Passes, c.Fails)
}

func writeMetric(w io.Writer, name, value string) {
	dots := metricNameWidth - len(name)
	if dots < 3 {
		dots = 3
	}
	fmt.Fprintf(w, "  %s%s: %s\n", name, strings.Repeat(".", dots), value)
}

func trendLine(t metrics.TrendStats) string {
	return fmt.Sprintf("avg=%s min=%s med=%s max=%s p(90)=%s p(95)=%s",
		short(t.Mean), short(t.Min), short(t.P50), short(t.Max), short(t.P90), short(t.P95))
}

func short(d time.Duration) string {
	switch {
	case d == 0:
		return "0s"
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	default:
		return d.Round(time.Millisecond).String()
	}
}

func percent(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}

type jsonThreshold struct {
	Metric     string  `json:"metric"`
	Expression string  `json:"expression"`
	Actual     float64 `json:"actual"`
	Pass       bool    `json:"pass"`
}

type jsonReport struct {
	RunID      string           `json:"run_id,omitempty"`
	Target     string           `json:"target,omitempty"`
	Cancelled  bool             `json:"cancelled,omitempty"`
	Metrics    metrics.Stats    `json:"metrics"`
	Thresholds []jsonThreshold  `json:"thresholds,omitempty"`
	Passed     bool             `json:"passed"`
	Host       *hostmon.Summary `json:"load_generator,omitempty"`
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, s Summary) error {
	report := jsonReport{
		RunID:     s.RunID,
		Target:    s.Target,
		Cancelled: s.Cancelled,
		Metrics:   s.Stats,
		Passed:    s.Passed(),
		Host:      s.Host,
	}
	for _, r := range s.Thresholds {
		report.Thresholds = append(report.Thresholds, jsonThreshold{
			Metric:     r.Threshold.Metric,
			Expression: r.Threshold.Raw,
			Actual:     r.Actual,
			Pass:       r.Pass,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
