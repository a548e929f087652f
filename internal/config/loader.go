package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files, the environment and
// command-line arguments.
type Loader struct{}

// envKeys are the settings that may be overridden from ESTIMATE_LOAD_*
// variables. Nested keys use an underscore, e.g. ESTIMATE_LOAD_TRACING_ENDPOINT.
var envKeys = []string{
	"target", "path", "region", "token", "stages", "start_vus",
	"think_time", "timeout", "graceful_ramp_down", "graceful_stop", "max_rps",
	"payload_file", "json_output", "dashboard", "html_output",
	"log_errors", "log_level", "log_format",
	"history_db",
	"tracing.endpoint", "tracing.protocol", "tracing.service_name",
	"tracing.sample_rate", "tracing.insecure", "tracing.propagate",
}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFlags resolves configuration from an already parsed flag set, as
// registered by RegisterFlags.
func (Loader) LoadFlags(flagSet *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := flagSet.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	cfgViper.SetEnvPrefix(EnvPrefix)
	cfgViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := cfgViper.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		TargetURL:        DefaultTarget,
		Path:             DefaultPath,
		Headers:          map[string]string{},
		ThinkTime:        DefaultThinkTime,
		Timeout:          DefaultTimeout,
		GracefulRampDown: DefaultGracefulRampDown,
		GracefulStop:     DefaultGracefulStop,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		ConfigFile:       configPath,
		Tracing:          TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimRight(strings.TrimSpace(cfg.TargetURL), "/")
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	if strings.TrimSpace(cfg.Token) == "" {
		cfg.Token = DefaultToken
		cfg.TokenDefaulted = true
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file or the environment
// to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target"); ok && raw != nil {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "path"); ok && raw != nil {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("path: %w", err)
		}
		cfg.Path = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "region"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("region: %w", err)
		}
		cfg.Region = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "token"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		cfg.Token = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "stages"); ok && raw != nil {
		stages, err := asStages(raw)
		if err != nil {
			return fmt.Errorf("stages: %w", err)
		}
		cfg.Stages = stages
	}

	if raw, ok := lookupSetting(settings, "start_vus", "startvus", "start-vus"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("start_vus: %w", err)
		}
		cfg.StartVUs = val
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok && raw != nil {
		set, err := asThresholds(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = set
	}

	durations := []struct {
		name string
		keys []string
		dst  *time.Duration
	}{
		{"think_time", []string{"think_time", "thinktime", "think-time"}, &cfg.ThinkTime},
		{"timeout", []string{"timeout"}, &cfg.Timeout},
		{"graceful_ramp_down", []string{"graceful_ramp_down", "gracefulrampdown", "graceful-ramp-down"}, &cfg.GracefulRampDown},
		{"graceful_stop", []string{"graceful_stop", "gracefulstop", "graceful-stop"}, &cfg.GracefulStop},
	}
	for _, d := range durations {
		raw, ok := lookupSetting(settings, d.keys...)
		if !ok || raw == nil {
			continue
		}
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = dur
	}

	if raw, ok := lookupSetting(settings, "max_rps", "maxrps", "max-rps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_rps: %w", err)
		}
		cfg.MaxRPS = val
	}

	if raw, ok := lookupSetting(settings, "payload_file", "payloadfile", "payload-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("payload_file: %w", err)
		}
		cfg.PayloadFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "json_output", "jsonoutput", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "html_output", "htmloutput", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("html_output: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "log_errors", "logerrors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("log_errors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "log_level", "loglevel", "log-level"); ok && raw != nil {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		cfg.LogLevel = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "log_format", "logformat", "log-format"); ok && raw != nil {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_format: %w", err)
		}
		cfg.LogFormat = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "history_db", "historydb", "history-db"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("history_db: %w", err)
		}
		cfg.HistoryDB = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok && raw != nil {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyTracingSettings(t *TracingConfig, raw interface{}) error {
	settings, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}
	if v, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(v)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if v, ok := lookupSetting(settings, "protocol"); ok && v != nil {
		val, err := asString(v)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if v, ok := lookupSetting(settings, "service_name", "servicename"); ok {
		val, err := asString(v)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if v, ok := lookupSetting(settings, "sample_rate", "samplerate"); ok && v != nil {
		val, err := asFloat64(v)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if v, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(v)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if v, ok := lookupSetting(settings, "propagate"); ok && v != nil {
		val, err := asBool(v)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return nil
}
