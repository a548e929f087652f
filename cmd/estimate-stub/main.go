// Command estimate-stub serves a local stand-in for the cost estimation API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloudcostguard/estimate-load/internal/logging"
	"github.com/cloudcostguard/estimate-load/internal/stub"
)

type stubFlags struct {
	addr      string
	apiKeys   []string
	latency   time.Duration
	jitter    time.Duration
	errorRate float64
	logLevel  string
	logFormat string
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var f stubFlags
	cmd := &cobra.Command{
		Use:           "estimate-stub",
		Short:         "Serve a local cost estimation endpoint for load testing",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.addr, "addr", ":8080", "Listen address")
	flags.StringSliceVar(&f.apiKeys, "api-key", []string{"test-key"}, "Accepted bearer API keys (empty disables auth)")
	flags.DurationVar(&f.latency, "latency", 0, "Latency added to every estimate")
	flags.DurationVar(&f.jitter, "jitter", 0, "Random extra latency up to this value")
	flags.Float64Var(&f.errorRate, "error-rate", 0, "Share of estimates answered with 503 (0.0-1.0)")
	flags.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flags.StringVar(&f.logFormat, "log-format", "console", "Log format: console or json")
	return cmd
}

func serve(ctx context.Context, f stubFlags) error {
	if f.errorRate < 0 || f.errorRate > 1 {
		return fmt.Errorf("error-rate must be between 0 and 1, got %g", f.errorRate)
	}
	logger, err := logging.New(logging.Options{Level: f.logLevel, Format: f.logFormat, Component: "estimate-stub"})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	srv := &http.Server{
		Addr: f.addr,
		Handler: stub.NewHandler(stub.Options{
			APIKeys:   f.apiKeys,
			Latency:   f.latency,
			Jitter:    f.jitter,
			ErrorRate: f.errorRate,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", f.addr), zap.Int("api_keys", len(f.apiKeys)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
