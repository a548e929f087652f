package config

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all run flags on a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("target", DefaultTarget, "Base URL of the cost estimation API")
	flags.String("path", DefaultPath, "Path of the estimate endpoint")
	flags.String("region", "", "Optional region query parameter sent with each request")
	flags.String("token", "", "Bearer API key (or set "+EnvPrefix+"_TOKEN)")
	flags.StringArray("header", nil, "Additional request header in key=value form (repeatable)")
	flags.String("payload-file", "", "YAML or JSON file with the resource change to send")

	// Load shape flags
	flags.StringArray("stage", nil, "Load stage in duration:target form, e.g. 2m:100 (repeatable, replaces the default plan)")
	flags.Int("start-vus", 0, "Virtual users at the start of the first stage")
	flags.Duration("think-time", DefaultThinkTime, "Pause between iterations of one virtual user")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.Duration("graceful-ramp-down", DefaultGracefulRampDown, "Time a retired virtual user gets to finish its iteration")
	flags.Duration("graceful-stop", DefaultGracefulStop, "Time running iterations get to finish after the last stage")
	flags.Int("max-rps", 0, "Global cap on iterations started per second (0 means unlimited)")

	// Threshold flags
	flags.StringArray("threshold", nil, "Threshold in metric:expression form, e.g. 'http_req_duration:p(95)<500' (repeatable)")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show a live terminal dashboard instead of the progress line")
	flags.String("html-output", "", "Write an HTML report to the given file path")
	flags.Bool("log-errors", false, "Log each failed iteration")
	flags.String("log-level", DefaultLogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", DefaultLogFormat, "Log format: console or json")
	flags.String("history-db", "", "Path to a run history database; each run summary is appended")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace (0.0-1.0)")
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("path") {
		val, err := fs.GetString("path")
		if err != nil {
			return err
		}
		cfg.Path = strings.TrimSpace(val)
	}
	if fs.Changed("region") {
		val, err := fs.GetString("region")
		if err != nil {
			return err
		}
		cfg.Region = strings.TrimSpace(val)
	}
	if fs.Changed("token") {
		val, err := fs.GetString("token")
		if err != nil {
			return err
		}
		cfg.Token = strings.TrimSpace(val)
	}
	if fs.Changed("payload-file") {
		val, err := fs.GetString("payload-file")
		if err != nil {
			return err
		}
		cfg.PayloadFile = strings.TrimSpace(val)
	}
	if fs.Changed("stage") {
		vals, err := fs.GetStringArray("stage")
		if err != nil {
			return err
		}
		stages, err := asStages(vals)
		if err != nil {
			return fmt.Errorf("stage: %w", err)
		}
		cfg.Stages = stages
	}
	if fs.Changed("start-vus") {
		val, err := fs.GetInt("start-vus")
		if err != nil {
			return err
		}
		cfg.StartVUs = val
	}
	if fs.Changed("think-time") {
		val, err := fs.GetDuration("think-time")
		if err != nil {
			return err
		}
		cfg.ThinkTime = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("graceful-ramp-down") {
		val, err := fs.GetDuration("graceful-ramp-down")
		if err != nil {
			return err
		}
		cfg.GracefulRampDown = val
	}
	if fs.Changed("graceful-stop") {
		val, err := fs.GetDuration("graceful-stop")
		if err != nil {
			return err
		}
		cfg.GracefulStop = val
	}
	if fs.Changed("max-rps") {
		val, err := fs.GetInt("max-rps")
		if err != nil {
			return err
		}
		cfg.MaxRPS = val
	}
	if fs.Changed("threshold") {
		vals, err := fs.GetStringArray("threshold")
		if err != nil {
			return err
		}
		// Flags replace the configured set for the metrics they name.
		flagSet := map[string][]string{}
		for _, entry := range vals {
			metric, expr, err := parseThresholdFlag(entry)
			if err != nil {
				return err
			}
			flagSet[metric] = append(flagSet[metric], expr)
		}
		if cfg.Thresholds == nil {
			cfg.Thresholds = map[string][]string{}
		}
		for metric, exprs := range flagSet {
			cfg.Thresholds[metric] = exprs
		}
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("history-db") {
		val, err := fs.GetString("history-db")
		if err != nil {
			return err
		}
		cfg.HistoryDB = strings.TrimSpace(val)
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	vals, err := fs.GetStringArray("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	return nil
}
