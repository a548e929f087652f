package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudcostguard/estimate-load/internal/config"
	"github.com/cloudcostguard/estimate-load/internal/history"
	"github.com/cloudcostguard/estimate-load/internal/output"
	"github.com/cloudcostguard/estimate-load/internal/scenario"
)

func newHistoryRecord(s output.Summary, stages scenario.LoadPlan, startedAt time.Time) history.Record {
	rec := history.Record{
		ID:        s.RunID,
		StartedAt: startedAt.UTC(),
		Target:    s.Target,
		Stages:    stageStrings(stages),
		Stats:     s.Stats,
		Passed:    s.Passed(),
		Cancelled: s.Cancelled,
	}
	for _, r := range s.Thresholds {
		rec.Thresholds = append(rec.Thresholds, history.Verdict{
			Expression: r.Threshold.Raw,
			Actual:     r.Actual,
			Pass:       r.Pass,
		})
	}
	return rec
}

func saveHistory(path string, rec history.Record) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Save(rec)
	return err
}

func newHistoryCommand(stdout io.Writer) *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List previous runs, or show one run as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--history-db (or %s_HISTORY_DB) is required", config.EnvPrefix)
			}
			store, err := history.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				rec, err := store.Get(args[0])
				if err != nil {
					return fmt.Errorf("run %s: %w", args[0], err)
				}
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}

			recs, err := store.List(limit)
			if err != nil {
				return err
			}
			printHistory(stdout, recs)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "history-db", os.Getenv(config.EnvPrefix+"_HISTORY_DB"), "Path to the run history database")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 lists all)")
	return cmd
}

func printHistory(w io.Writer, recs []history.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tREQUESTS\tFAILED\tP95\tRESULT")
	for _, rec := range recs {
		result := "pass"
		switch {
		case rec.Cancelled:
			result = "cancelled"
		case !rec.Passed:
			result = "fail"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f%%\t%.1fms\t%s\n",
			rec.ID,
			rec.StartedAt.Local().Format(time.DateTime),
			rec.Stats.Requests,
			rec.Stats.FailureRate()*100,
			rec.Stats.RequestDuration.P95Ms,
			result,
		)
	}
	_ = tw.Flush()
}
