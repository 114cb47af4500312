package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/watchdog/internal/probe"
)

type statusStore interface {
	AllLatest(ctx context.Context) ([]probe.Result, error)
}

func executeStatus(cmd *cobra.Command, db statusStore) error {
	out := cmd.OutOrStdout()
	results, err := db.AllLatest(context.Background())
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No probe history. Run 'watchdog serve' or 'watchdog check' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tOUTCOME\tLATENCY\tLAST PROBED\tDETAIL")
	for _, r := range results {
		latency := "—"
		if r.Outcome == probe.OutcomeSuccess || r.Outcome == probe.OutcomeFailure {
			latency = r.Latency.Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Target,
			r.Outcome,
			latency,
			r.ProbedAt.Local().Format("2006-01-02 15:04:05"),
			r.Detail,
		)
	}
	w.Flush()
	return nil
}
