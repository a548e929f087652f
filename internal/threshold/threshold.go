// Package threshold parses and evaluates pass/fail predicates over the
// aggregated metrics of a run.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/cloudcostguard/estimate-load/internal/metrics"
)

// Metric kinds decide which aggregates a threshold may use.
type kind int

const (
	kindTrend kind = iota
	kindRate
	kindCounter
	kindGauge
)

var knownMetrics = map[string]kind{
	"http_req_duration":  kindTrend,
	"iteration_duration": kindTrend,
	"http_req_failed":    kindRate,
	"checks":             kindRate,
	"http_reqs":          kindCounter,
	"iterations":         kindCounter,
	"vus_max":            kindGauge,
}

var allowedAggregates = map[kind][]string{
	kindTrend:   {"avg", "min", "max", "med", "p"},
	kindRate:    {"rate"},
	kindCounter: {"count", "rate"},
	kindGauge:   {"value"},
}

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric     string  // e.g. "http_req_duration", "http_req_failed"
	Aggregate  string  // "avg", "min", "max", "med", "p", "rate", "count" or "value"
	Percentile float64 // set when Aggregate is "p"
	Operator   string  // "<", "<=", ">", ">=", "==" or "!="
	Value      float64 // durations are compared in milliseconds
	Raw        string  // original expression for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

var exprPattern = regexp.MustCompile(`^(avg|min|max|med|rate|count|value|p\(\s*([0-9]+(?:\.[0-9]+)?)\s*\)|p([0-9]+(?:\.[0-9]+)?))\s*(<=|>=|==|!=|<|>)\s*(-?[0-9]+(?:\.[0-9]+)?)$`)

// Parse parses one expression for metric, e.g. Parse("http_req_duration", "p(95)<500").
func Parse(metric, expr string) (Threshold, error) {
	metric = strings.TrimSpace(metric)
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Threshold{}, fmt.Errorf("%s: empty threshold expression", metric)
	}
	k, ok := knownMetrics[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric %q (supported: %s)", metric, strings.Join(metricNames(), ", "))
	}

	m := exprPattern.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("%s: invalid threshold %q (expected aggregate operator value, e.g. 'p(95)<500')", metric, expr)
	}

	t := Threshold{
		Metric:    metric,
		Aggregate: m[1],
		Operator:  m[4],
		Raw:       metric + ": " + expr,
	}
	if pct := firstNonEmpty(m[2], m[3]); pct != "" {
		p, err := strconv.ParseFloat(pct, 64)
		if err != nil || p <= 0 || p >= 100 {
			return Threshold{}, fmt.Errorf("%s: percentile must be between 0 and 100 exclusive, got %q", metric, pct)
		}
		t.Aggregate = "p"
		t.Percentile = p
	}
	if t.Aggregate == "med" {
		t.Aggregate = "p"
		t.Percentile = 50
	}

	value, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("%s: invalid threshold value %q: %w", metric, m[5], err)
	}
	t.Value = value

	if !aggregateAllowed(k, t.Aggregate) {
		return Threshold{}, fmt.Errorf("%s: aggregate %q is not supported for this metric (supported: %s)", metric, m[1], strings.Join(allowedAggregates[k], ", "))
	}
	return t, nil
}

// ParseLine parses the single-line form "metric:expression", e.g.
// "http_req_duration:p95 < 500" or "http_req_failed: rate<0.01".
func ParseLine(line string) (Threshold, error) {
	line = strings.TrimSpace(line)
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return Threshold{}, fmt.Errorf("invalid threshold %q (expected metric:expression, e.g. 'http_req_duration:p(95)<500')", line)
	}
	return Parse(line[:idx], line[idx+1:])
}

// ParseSet parses a metric -> expressions mapping. Every invalid expression
// is reported, not just the first. Metrics are returned in name order.
func ParseSet(set map[string][]string) ([]Threshold, error) {
	if len(set) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []Threshold
	var errs *multierror.Error
	for _, name := range names {
		for _, expr := range set[name] {
			t, err := Parse(name, expr)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			result = append(result, t)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return result, nil
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate checks all thresholds against the provided stats.
func (e *Evaluator) Evaluate(stats metrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, stats))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, stats metrics.Stats) Result {
	actual, err := metricValue(t, stats)
	if err != nil {
		return Result{Threshold: t, Message: fmt.Sprintf("✗ %s: %v", t.Raw, err)}
	}
	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s (actual %s)", status, t.Raw, formatValue(actual)),
	}
}

func metricValue(t Threshold, stats metrics.Stats) (float64, error) {
	switch t.Metric {
	case "http_req_duration":
		return trendValue(t, stats.RequestDuration)
	case "iteration_duration":
		return trendValue(t, stats.IterationDuration)
	case "http_req_failed":
		return stats.FailureRate(), nil
	case "checks":
		return stats.CheckRate(), nil
	case "http_reqs":
		if t.Aggregate == "rate" {
			return stats.RequestsPerSec, nil
		}
		return float64(stats.Requests), nil
	case "iterations":
		if t.Aggregate == "rate" {
			return stats.IterationsPerSec, nil
		}
		return float64(stats.Iterations), nil
	case "vus_max":
		return float64(stats.VUsMax), nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func trendValue(t Threshold, s metrics.TrendStats) (float64, error) {
	switch t.Aggregate {
	case "avg":
		return s.MeanMs, nil
	case "min":
		return s.MinMs, nil
	case "max":
		return s.MaxMs, nil
	case "p":
		return float64(s.Percentile(t.Percentile)) / 1e6, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s", t.Aggregate, t.Metric)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	const epsilon = 1e-9
	equal := math.Abs(actual-expected) < epsilon

	switch operator {
	case "<":
		return actual < expected && !equal
	case "<=":
		return actual <= expected || equal
	case ">":
		return actual > expected && !equal
	case ">=":
		return actual >= expected || equal
	case "==":
		return equal
	case "!=":
		return !equal
	default:
		return false
	}
}

func aggregateAllowed(k kind, aggregate string) bool {
	for _, a := range allowedAggregates[k] {
		if a == aggregate {
			return true
		}
	}
	return false
}

func metricNames() []string {
	names := make([]string, 0, len(knownMetrics))
	for name := range knownMetrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
