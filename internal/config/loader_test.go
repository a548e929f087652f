package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		input   string
		want    Stage
		wantErr bool
	}{
		{input: "2m:100", want: Stage{Duration: 2 * time.Minute, Target: 100}},
		{input: " 30s : 0 ", want: Stage{Duration: 30 * time.Second, Target: 0}},
		{input: "1h30m:5", want: Stage{Duration: 90 * time.Minute, Target: 5}},
		{input: "2m", wantErr: true},
		{input: ":100", wantErr: true},
		{input: "2m:", wantErr: true},
		{input: "two:100", wantErr: true},
		{input: "2m:many", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseStage(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseStage(%q) expected error, got %+v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseStage(%q) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseStage(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestAsStages(t *testing.T) {
	want := []Stage{
		{Duration: 2 * time.Minute, Target: 100},
		{Duration: 5 * time.Minute, Target: 100},
		{Duration: 2 * time.Minute, Target: 0},
	}

	inputs := map[string]interface{}{
		"maps": []interface{}{
			map[string]interface{}{"duration": "2m", "target": 100},
			map[string]interface{}{"duration": "5m", "target": 100},
			map[interface{}]interface{}{"duration": "2m", "target": 0},
		},
		"compact strings": []interface{}{"2m:100", "5m:100", "2m:0"},
		"env list":        "2m:100,5m:100,2m:0",
	}
	for name, input := range inputs {
		got, err := asStages(input)
		if err != nil {
			t.Fatalf("%s: asStages() error = %v", name, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s: asStages() = %+v, want %+v", name, got, want)
		}
	}

	if _, err := asStages([]interface{}{map[string]interface{}{"target": 1}}); err == nil {
		t.Errorf("expected error for stage without duration")
	}
	if _, err := asStages([]interface{}{map[string]interface{}{"duration": "1m"}}); err == nil {
		t.Errorf("expected error for stage without target")
	}
}

func TestAsThresholds(t *testing.T) {
	got, err := asThresholds(map[string]interface{}{
		"http_req_duration": []interface{}{"p(95)<500", "avg<200"},
		"http_req_failed":   "rate<0.01",
	})
	if err != nil {
		t.Fatalf("asThresholds() error = %v", err)
	}
	want := map[string][]string{
		"http_req_duration": {"p(95)<500", "avg<200"},
		"http_req_failed":   {"rate<0.01"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("asThresholds() = %v, want %v", got, want)
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := &Config{}
	settings := map[string]interface{}{
		"target":      "http://estimator.internal:8080",
		"path":        "/v1/estimate",
		"token":       " secret ",
		"think_time":  "500ms",
		"timeout":     "5s",
		"max_rps":     20,
		"dashboard":   "true",
		"html_output": "out/report.html",
		"headers": map[string]interface{}{
			"x-request-source": "load",
		},
		"stages": []interface{}{"1m:10"},
		"thresholds": map[string]interface{}{
			"checks": "rate>0.99",
		},
		"tracing": map[string]interface{}{
			"endpoint":    "localhost:4317",
			"sample_rate": 0.5,
			"propagate":   false,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.TargetURL != "http://estimator.internal:8080" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Path != "/v1/estimate" {
		t.Errorf("Path = %q, want /v1/estimate", cfg.Path)
	}
	if cfg.Token != "secret" {
		t.Errorf("Token = %q, want secret", cfg.Token)
	}
	if cfg.ThinkTime != 500*time.Millisecond || cfg.Timeout != 5*time.Second {
		t.Errorf("durations = %s/%s, want 500ms/5s", cfg.ThinkTime, cfg.Timeout)
	}
	if cfg.MaxRPS != 20 {
		t.Errorf("MaxRPS = %d, want 20", cfg.MaxRPS)
	}
	if !cfg.Dashboard || cfg.HTMLOutput != "out/report.html" {
		t.Errorf("Dashboard/HTMLOutput = %v/%q", cfg.Dashboard, cfg.HTMLOutput)
	}
	if cfg.Headers["X-Request-Source"] != "load" {
		t.Errorf("Headers = %v, want canonical X-Request-Source", cfg.Headers)
	}
	if len(cfg.Stages) != 1 || cfg.Stages[0].Target != 10 {
		t.Errorf("Stages = %+v", cfg.Stages)
	}
	if cfg.Thresholds["checks"][0] != "rate>0.99" {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.Propagate == nil || *cfg.Tracing.Propagate {
		t.Errorf("Tracing.Propagate should be explicitly false")
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := &Config{
		Thresholds: map[string][]string{
			"http_req_duration": {"p(95)<800"},
			"checks":            {"rate>0.9"},
		},
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--target=http://example.com",
		"--stage=10s:5",
		"--stage=20s:0",
		"--threshold=http_req_duration:p(95)<500",
		"--threshold=http_req_duration:p(99)<1500",
		"--header=X-Test=123",
		"--max-rps=7",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.TargetURL != "http://example.com" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	wantStages := []Stage{{Duration: 10 * time.Second, Target: 5}, {Duration: 20 * time.Second, Target: 0}}
	if !reflect.DeepEqual(cfg.Stages, wantStages) {
		t.Errorf("Stages = %+v, want %+v", cfg.Stages, wantStages)
	}
	if got := cfg.Thresholds["http_req_duration"]; !reflect.DeepEqual(got, []string{"p(95)<500", "p(99)<1500"}) {
		t.Errorf("http_req_duration thresholds = %v", got)
	}
	if got := cfg.Thresholds["checks"]; !reflect.DeepEqual(got, []string{"rate>0.9"}) {
		t.Errorf("checks threshold should survive, got %v", got)
	}
	if cfg.Headers["X-Test"] != "123" {
		t.Errorf("Headers[X-Test] = %q, want 123", cfg.Headers["X-Test"])
	}
	if cfg.MaxRPS != 7 {
		t.Errorf("MaxRPS = %d, want 7", cfg.MaxRPS)
	}
}

func TestApplyFlagOverridesRejectsBadThreshold(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	if err := fs.Parse([]string{"--threshold=p(95)<500"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := applyFlagOverrides(&Config{}, fs); err == nil {
		t.Fatalf("expected error for threshold without metric")
	}
}

func TestLoaderLoadFlags(t *testing.T) {
	t.Setenv(EnvPrefix+"_TOKEN", "")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	if err := fs.Parse([]string{"--target=http://example.com/", "--token=abc"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := NewLoader().LoadFlags(fs)
	if err != nil {
		t.Fatalf("LoadFlags() error = %v", err)
	}

	if cfg.TargetURL != "http://example.com" {
		t.Errorf("TargetURL = %q, want http://example.com", cfg.TargetURL)
	}
	if cfg.Token != "abc" || cfg.TokenDefaulted {
		t.Errorf("Token = %q (defaulted %v), want abc", cfg.Token, cfg.TokenDefaulted)
	}
}
