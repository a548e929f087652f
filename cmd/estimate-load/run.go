package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cloudcostguard/estimate-load/internal/auth"
	"github.com/cloudcostguard/estimate-load/internal/config"
	"github.com/cloudcostguard/estimate-load/internal/dashboard"
	"github.com/cloudcostguard/estimate-load/internal/history"
	"github.com/cloudcostguard/estimate-load/internal/hostmon"
	"github.com/cloudcostguard/estimate-load/internal/httpclient"
	"github.com/cloudcostguard/estimate-load/internal/logging"
	"github.com/cloudcostguard/estimate-load/internal/metrics"
	"github.com/cloudcostguard/estimate-load/internal/output"
	"github.com/cloudcostguard/estimate-load/internal/runner"
	"github.com/cloudcostguard/estimate-load/internal/scenario"
	"github.com/cloudcostguard/estimate-load/internal/threshold"
	"github.com/cloudcostguard/estimate-load/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func runLoad(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: stderr})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.TokenDefaulted {
		logger.Warn("no API token configured, using the default test key",
			zap.String("env", config.EnvPrefix+"_TOKEN"))
	}

	def := scenario.Default(cfg)
	thresholds, err := def.Validate()
	if err != nil {
		return err
	}

	change := scenario.DefaultResourceChange()
	if cfg.PayloadFile != "" {
		if change, err = scenario.LoadResourceChange(cfg.PayloadFile); err != nil {
			return err
		}
	}

	runID := history.NewID()
	tp, err := tracing.Init(ctx, cfg.Tracing, runID)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	provider, err := auth.NewStaticTokenProvider(cfg.Token)
	if err != nil {
		return err
	}
	defer provider.Close()

	builder, err := httpclient.NewRequestBuilderWithAuth(cfg, provider)
	if err != nil {
		return err
	}
	if tp.ShouldPropagate() {
		builder.WithHeaderInjector(tracing.InjectHTTPHeaders)
	}

	collector := metrics.NewCollector()
	workload, err := scenario.NewEstimateWorkload(scenario.WorkloadOptions{
		Builder:   builder,
		Client:    httpclient.NewClient(cfg.Timeout),
		Recorder:  collector,
		Change:    change,
		ThinkTime: cfg.ThinkTime,
		Tracer:    tp.Tracer(),
		Logger:    logger.Named("workload"),
	})
	if err != nil {
		return err
	}
	def.Workload = workload
	if cfg.LogErrors {
		def.Workload = runner.WithLogging(def.Workload, &failureLogger{logger: logger.Named("failures")})
	}

	r := runner.New(runner.Options{
		Stages:           def.Stages,
		StartVUs:         cfg.StartVUs,
		GracefulRampDown: cfg.GracefulRampDown,
		GracefulStop:     cfg.GracefulStop,
		MaxRPS:           cfg.MaxRPS,
		Workload:         def.Workload,
		Observer:         collector,
		Logger:           logger.Named("runner"),
	})

	logger.Info("starting run",
		zap.String("run_id", runID),
		zap.String("target", builder.Target()),
		zap.Duration("planned", r.PlannedDuration()),
		zap.Strings("thresholds", thresholdStrings(thresholds)),
	)

	// The dashboard's quit key cancels only this run.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	monitor := hostmon.New(hostmon.Options{Logger: logger.Named("hostmon")})
	bgCtx, stopBackground := context.WithCancel(runCtx)
	bgDone := make(chan struct{}, 2)
	go func() {
		defer func() { bgDone <- struct{}{} }()
		monitor.Run(bgCtx)
	}()
	go func() {
		defer func() { bgDone <- struct{}{} }()
		if cfg.HTMLOutput != "" {
			recordHistory(bgCtx, collector, progressInterval)
		}
	}()

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, thresholds, dashboard.RunInfo{
			RunID:      runID,
			Target:     builder.Target(),
			Planned:    r.PlannedDuration(),
			PeakTarget: peakTarget(def.Stages),
			Stages:     stageStrings(def.Stages),
		}, cancelRun)
		if err != nil {
			stopBackground()
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(collector, r.PlannedDuration(), progressInterval, stdout)
		progress.Start()
	}

	startedAt := time.Now()
	collector.Start()
	result := r.Run(runCtx)

	stopBackground()
	<-bgDone
	<-bgDone
	if dash != nil {
		dash.Stop()
	}
	if progress != nil {
		progress.Stop()
	}

	host := monitor.Summary()
	stats := collector.Stats(result.Duration)
	summary := output.Summary{
		RunID:      runID,
		Target:     builder.Target(),
		Stats:      stats,
		Thresholds: threshold.NewEvaluator(thresholds).Evaluate(stats),
		Host:       &host,
		Cancelled:  runCtx.Err() != nil,
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, summary); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, summary)
	}

	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg.HTMLOutput, summary, collector.History()); err != nil {
			return err
		}
		logger.Info("html report written", zap.String("path", cfg.HTMLOutput))
	}

	if cfg.HistoryDB != "" {
		if err := saveHistory(cfg.HistoryDB, newHistoryRecord(summary, def.Stages, startedAt)); err != nil {
			logger.Warn("run history not saved", zap.String("path", cfg.HistoryDB), zap.Error(err))
		}
	}

	logger.Info("run finished",
		zap.String("run_id", runID),
		zap.Int64("iterations", result.Iterations),
		zap.Int64("interrupted", result.Interrupted),
		zap.Int("max_vus", result.MaxVUs),
		zap.Bool("thresholds_passed", summary.Passed()),
	)

	if !summary.Passed() {
		return errThresholdsFailed
	}
	return nil
}

func thresholdStrings(ts []threshold.Threshold) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Raw)
	}
	return out
}

// failureLogger reports failed iterations through zap.
type failureLogger struct {
	logger *zap.Logger
}

func (l *failureLogger) LogFailure(vu runner.VU, err error) {
	if err == nil {
		return
	}
	l.logger.Warn("request failed",
		zap.Int("vu", vu.ID),
		zap.Int64("iteration", vu.Iteration),
		zap.Error(err),
	)
}

func stageStrings(stages scenario.LoadPlan) []string {
	out := make([]string, 0, len(stages))
	for _, s := range stages {
		out = append(out, fmt.Sprintf("%s:%d", s.Duration, s.Target))
	}
	return out
}

func peakTarget(stages scenario.LoadPlan) int {
	peak := 0
	for _, s := range stages {
		if s.Target > peak {
			peak = s.Target
		}
	}
	return peak
}

// recordHistory snapshots the collector every interval, and once more when
// ctx ends, for the HTML report's charts.
func recordHistory(ctx context.Context, collector *metrics.Collector, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			collector.Snapshot()
			return
		case <-ticker.C:
			collector.Snapshot()
		}
	}
}

func writeHTMLReport(path string, summary output.Summary, history []metrics.DataPoint) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("html report: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("html report: %w", err)
	}
	if err := output.WriteHTMLReport(f, summary, history); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
