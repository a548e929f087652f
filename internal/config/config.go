package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultTarget           = "http://localhost:8080"
	DefaultPath             = "/estimate"
	DefaultToken            = "test-key"
	DefaultThinkTime        = time.Second
	DefaultTimeout          = 60 * time.Second
	DefaultGracefulRampDown = 30 * time.Second
	DefaultGracefulStop     = 30 * time.Second
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"

	// EnvPrefix namespaces environment overrides, e.g. ESTIMATE_LOAD_TOKEN.
	EnvPrefix = "ESTIMATE_LOAD"
)

type Config struct {
	TargetURL        string              `mapstructure:"target"`
	Path             string              `mapstructure:"path"`
	Region           string              `mapstructure:"region"`
	Token            string              `mapstructure:"token"`
	Headers          map[string]string   `mapstructure:"headers"`
	Stages           []Stage             `mapstructure:"stages"`
	StartVUs         int                 `mapstructure:"start_vus"`
	Thresholds       map[string][]string `mapstructure:"thresholds"`
	ThinkTime        time.Duration       `mapstructure:"think_time"`
	Timeout          time.Duration       `mapstructure:"timeout"`
	GracefulRampDown time.Duration       `mapstructure:"graceful_ramp_down"`
	GracefulStop     time.Duration       `mapstructure:"graceful_stop"`
	MaxRPS           int                 `mapstructure:"max_rps"`
	PayloadFile      string              `mapstructure:"payload_file"`
	JSONOutput       bool                `mapstructure:"json_output"`
	Dashboard        bool                `mapstructure:"dashboard"`
	HTMLOutput       string              `mapstructure:"html_output"`
	LogErrors        bool                `mapstructure:"log_errors"`
	LogLevel         string              `mapstructure:"log_level"`
	LogFormat        string              `mapstructure:"log_format"`
	HistoryDB        string              `mapstructure:"history_db"`
	Tracing          TracingConfig       `mapstructure:"tracing"`
	ConfigFile       string              `mapstructure:"-"`

	// TokenDefaulted is set when no token was configured and DefaultToken is used.
	TokenDefaulted bool `mapstructure:"-"`
}

// Stage is one segment of the VU ramp.
type Stage struct {
	Duration time.Duration `mapstructure:"duration" json:"duration"`
	Target   int           `mapstructure:"target" json:"target"`
}

func (s Stage) String() string {
	return fmt.Sprintf("%s:%d", s.Duration, s.Target)
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" (default) or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"` // nil follows Enabled
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace headers go on outgoing requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// EndpointURL joins target, path and the optional region query.
func (c Config) EndpointURL() (string, error) {
	base, err := url.Parse(strings.TrimSpace(c.TargetURL))
	if err != nil {
		return "", fmt.Errorf("target: %w", err)
	}
	ref, err := url.Parse(c.Path)
	if err != nil {
		return "", fmt.Errorf("path: %w", err)
	}
	// The path is appended to any base path the target carries.
	u := base.JoinPath(ref.Path)
	if c.Region != "" {
		q := u.Query()
		q.Set("region", c.Region)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target is required")
	} else if u, err := url.Parse(c.TargetURL); err != nil {
		issues = append(issues, fmt.Sprintf("target: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		issues = append(issues, fmt.Sprintf("target must use http or https, got %q", c.TargetURL))
	} else if u.Host == "" {
		issues = append(issues, fmt.Sprintf("target must include a host, got %q", c.TargetURL))
	}
	if !strings.HasPrefix(c.Path, "/") {
		issues = append(issues, fmt.Sprintf("path must start with '/', got %q", c.Path))
	}
	if strings.TrimSpace(c.Token) == "" {
		issues = append(issues, "token must not be empty")
	}
	if strings.ContainsAny(c.Token, "\r\n") {
		issues = append(issues, "token must not contain line breaks")
	}

	for i, s := range c.Stages {
		if s.Duration < 0 {
			issues = append(issues, fmt.Sprintf("stages[%d]: duration must be >= 0", i))
		}
		if s.Target < 0 {
			issues = append(issues, fmt.Sprintf("stages[%d]: target must be >= 0", i))
		}
	}
	if c.StartVUs < 0 {
		issues = append(issues, "start_vus must be >= 0")
	}
	for metric, exprs := range c.Thresholds {
		if strings.TrimSpace(metric) == "" {
			issues = append(issues, "thresholds: metric name must not be empty")
		}
		if len(exprs) == 0 {
			issues = append(issues, fmt.Sprintf("thresholds[%s]: at least one expression is required", metric))
		}
	}

	if c.ThinkTime < 0 {
		issues = append(issues, "think_time must be >= 0")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.MaxRPS < 0 {
		issues = append(issues, "max_rps must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log_format must be console or json, got %q", c.LogFormat))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %g", t.SampleRate))
	}
	return issues
}
