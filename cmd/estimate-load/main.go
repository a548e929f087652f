package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloudcostguard/estimate-load/internal/config"
)

const (
	exitOK              = 0
	exitError           = 1
	exitThresholdFailed = 99
)

// errThresholdsFailed is returned after the report when any threshold was
// crossed.
var errThresholdsFailed = errors.New("some thresholds have failed")

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errThresholdsFailed):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitThresholdFailed
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "estimate-load",
		Short:         "Load test the cost estimation endpoint",
		Long:          "Drives a staged virtual-user ramp against POST /estimate, checks every response and fails when latency or error-rate thresholds are crossed.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader().LoadFlags(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runLoad(cmd.Context(), cfg, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	config.RegisterFlags(cmd)
	cmd.AddCommand(newHistoryCommand(stdout))
	return cmd
}
