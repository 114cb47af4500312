package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/watchdog/internal/config"
	"github.com/hazz-dev/watchdog/internal/probe"
)

func executeCheck(cmd *cobra.Command, cfg *config.Config) error {
	return runProbes(cmd.OutOrStdout(), cfg)
}

func runProbes(out io.Writer, cfg *config.Config) error {
	prober := probe.NewHTTPProber()
	results := make([]probe.Result, len(cfg.Targets))
	var wg sync.WaitGroup

	for i, t := range cfg.Targets {
		wg.Add(1)
		go func(i int, t config.Target) {
			defer wg.Done()
			results[i] = prober.Probe(context.Background(), t)
		}(i, t)
	}
	wg.Wait()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tOUTCOME\tLATENCY\tDETAIL")
	allUp := true
	for _, r := range results {
		latency := "—"
		if r.Outcome == probe.OutcomeSuccess || r.Outcome == probe.OutcomeFailure {
			latency = r.Latency.Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Target,
			r.Outcome,
			latency,
			r.Detail,
		)
		if r.Outcome != probe.OutcomeSuccess {
			allUp = false
		}
	}
	w.Flush()

	if !allUp {
		return fmt.Errorf("one or more targets are not healthy")
	}
	return nil
}
