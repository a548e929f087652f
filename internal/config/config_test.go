package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudcostguard/estimate-load/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TOKEN", "TARGET", "STAGES", "THINK_TIME", "TRACING_ENDPOINT"} {
		t.Setenv(config.EnvPrefix+"_"+key, "")
	}
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

// load parses args the way the root command does and resolves the config.
func load(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "estimate-load"}
	config.RegisterFlags(cmd)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return config.NewLoader().LoadFlags(cmd.Flags())
}

func TestParseFlagsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := load(t)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.TargetURL != "http://localhost:8080" {
		t.Errorf("TargetURL = %q, want http://localhost:8080", cfg.TargetURL)
	}
	if cfg.Path != "/estimate" {
		t.Errorf("Path = %q, want /estimate", cfg.Path)
	}
	if cfg.Token != "test-key" || !cfg.TokenDefaulted {
		t.Errorf("Token = %q (defaulted %v), want defaulted test-key", cfg.Token, cfg.TokenDefaulted)
	}
	if cfg.ThinkTime != time.Second {
		t.Errorf("ThinkTime = %s, want 1s", cfg.ThinkTime)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %s, want 60s", cfg.Timeout)
	}
	if cfg.GracefulRampDown != 30*time.Second || cfg.GracefulStop != 30*time.Second {
		t.Errorf("grace = %s/%s, want 30s/30s", cfg.GracefulRampDown, cfg.GracefulStop)
	}
	if len(cfg.Stages) != 0 {
		t.Errorf("Stages = %v, want none (scenario default applies)", cfg.Stages)
	}
	if cfg.JSONOutput {
		t.Errorf("JSONOutput = true, want false")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("logging = %s/%s, want info/console", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Tracing.Enabled() {
		t.Errorf("tracing should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "load.yaml")
	if err := os.WriteFile(path, []byte(`
target: https://estimator.example.com
path: /estimate
token: from-file
region: eu-west-1
think_time: 2s
stages:
  - duration: 30s
    target: 10
  - duration: 1m
    target: 10
  - duration: 30s
    target: 0
thresholds:
  http_req_duration:
    - p(95)<300
  checks: rate>0.99
json_output: true
tracing:
  endpoint: otel:4317
  insecure: true
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := load(t, "--config", path)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.TargetURL != "https://estimator.example.com" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Token != "from-file" || cfg.TokenDefaulted {
		t.Errorf("Token = %q (defaulted %v)", cfg.Token, cfg.TokenDefaulted)
	}
	if cfg.Region != "eu-west-1" {
		t.Errorf("Region = %q", cfg.Region)
	}
	if cfg.ThinkTime != 2*time.Second {
		t.Errorf("ThinkTime = %s, want 2s", cfg.ThinkTime)
	}
	if len(cfg.Stages) != 3 || cfg.Stages[1].Duration != time.Minute || cfg.Stages[2].Target != 0 {
		t.Errorf("Stages = %+v", cfg.Stages)
	}
	if got := cfg.Thresholds["http_req_duration"]; len(got) != 1 || got[0] != "p(95)<300" {
		t.Errorf("http_req_duration thresholds = %v", got)
	}
	if got := cfg.Thresholds["checks"]; len(got) != 1 || got[0] != "rate>0.99" {
		t.Errorf("checks thresholds = %v", got)
	}
	if !cfg.JSONOutput {
		t.Errorf("JSONOutput = false, want true")
	}
	if cfg.Tracing.Endpoint != "otel:4317" || !cfg.Tracing.Insecure {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if !cfg.Tracing.ShouldPropagate() {
		t.Errorf("propagation should follow enabled tracing")
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "load.json")
	if err := os.WriteFile(path, []byte(`{
  "target": "http://127.0.0.1:9000",
  "stages": ["10s:2", "10s:0"],
  "max_rps": 5,
  "graceful_stop": "5s"
}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := load(t, "--config", path)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.TargetURL != "http://127.0.0.1:9000" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if len(cfg.Stages) != 2 || cfg.Stages[0].Target != 2 {
		t.Errorf("Stages = %+v", cfg.Stages)
	}
	if cfg.MaxRPS != 5 || cfg.GracefulStop != 5*time.Second {
		t.Errorf("MaxRPS/GracefulStop = %d/%s", cfg.MaxRPS, cfg.GracefulStop)
	}
}

func TestPrecedenceFileEnvFlags(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "load.yaml")
	if err := os.WriteFile(path, []byte("token: from-file\nthink_time: 3s\ntarget: http://file:8080\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(config.EnvPrefix+"_TOKEN", "from-env")
	t.Setenv(config.EnvPrefix+"_THINK_TIME", "2s")

	cfg, err := load(t, "--config", path, "--think-time", "250ms")
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Token != "from-env" {
		t.Errorf("Token = %q, env should override file", cfg.Token)
	}
	if cfg.ThinkTime != 250*time.Millisecond {
		t.Errorf("ThinkTime = %s, flag should override env", cfg.ThinkTime)
	}
	if cfg.TargetURL != "http://file:8080" {
		t.Errorf("TargetURL = %q, file should override default", cfg.TargetURL)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		cfg  config.Config
		want string
	}{
		{config.Config{TargetURL: "http://localhost:8080", Path: "/estimate"}, "http://localhost:8080/estimate"},
		{config.Config{TargetURL: "https://api.example.com/v1", Path: "/estimate"}, "https://api.example.com/v1/estimate"},
		{config.Config{TargetURL: "http://localhost:8080", Path: "/estimate", Region: "us-east-1"}, "http://localhost:8080/estimate?region=us-east-1"},
	}
	for _, tt := range tests {
		got, err := tt.cfg.EndpointURL()
		if err != nil {
			t.Fatalf("EndpointURL() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("EndpointURL() = %q, want %q", got, tt.want)
		}
	}
}

func validConfig() config.Config {
	return config.Config{
		TargetURL: "http://localhost:8080",
		Path:      "/estimate",
		Token:     "test-key",
		Timeout:   time.Minute,
		LogLevel:  "info",
		LogFormat: "console",
	}
}

func TestConfigValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{
			name:   "missing target",
			mutate: func(c *config.Config) { c.TargetURL = "" },
			want:   []string{"target"},
		},
		{
			name:   "non http target",
			mutate: func(c *config.Config) { c.TargetURL = "ftp://example.com" },
			want:   []string{"http or https"},
		},
		{
			name:   "relative path",
			mutate: func(c *config.Config) { c.Path = "estimate" },
			want:   []string{"path"},
		},
		{
			name: "negative values",
			mutate: func(c *config.Config) {
				c.Stages = []config.Stage{{Duration: -time.Second, Target: -1}}
				c.StartVUs = -1
				c.ThinkTime = -1
				c.Timeout = 0
				c.MaxRPS = -1
			},
			want: []string{"stages[0]: duration", "stages[0]: target", "start_vus", "think_time", "timeout", "max_rps"},
		},
		{
			name:   "token with newline",
			mutate: func(c *config.Config) { c.Token = "abc\r\nX-Evil: 1" },
			want:   []string{"line breaks"},
		},
		{
			name: "logging and tracing",
			mutate: func(c *config.Config) {
				c.LogLevel = "verbose"
				c.LogFormat = "xml"
				c.Tracing.Protocol = "thrift"
				c.Tracing.SampleRate = 2
			},
			want: []string{"log_level", "log_format", "tracing.protocol", "tracing.sample_rate"},
		},
		{
			name: "dashboard with json output",
			mutate: func(c *config.Config) {
				c.Dashboard = true
				c.JSONOutput = true
			},
			want: []string{"mutually exclusive"},
		},
		{
			name:   "empty threshold list",
			mutate: func(c *config.Config) { c.Thresholds = map[string][]string{"checks": nil} },
			want:   []string{"thresholds[checks]"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want error")
			}
			for _, want := range tc.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() error %q missing %q", err.Error(), want)
				}
			}
			var verr config.ValidationError
			if ve, ok := err.(config.ValidationError); ok {
				verr = ve
			}
			if len(verr.Issues()) < len(tc.want) {
				t.Errorf("Issues() = %v, want at least %d", verr.Issues(), len(tc.want))
			}
		})
	}
}

func TestLoadDashboardAndHTMLOutputFlags(t *testing.T) {
	clearEnv(t)
	cfg, err := load(t, "--dashboard", "--html-output", " report.html ")
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if !cfg.Dashboard {
		t.Errorf("Dashboard = false, want true")
	}
	if cfg.HTMLOutput != "report.html" {
		t.Errorf("HTMLOutput = %q, want report.html", cfg.HTMLOutput)
	}
}
