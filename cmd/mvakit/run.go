package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rushteam/mvakit/app"
	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/sink"
)

var methodsFlag []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Train and evaluate the enabled algorithms",
	Long: `Train and evaluate the enabled algorithms. Without --methods the methods
listed in the configuration are used, or the catalog defaults when the
configuration lists none.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVarP(&methodsFlag, "methods", "m", nil, "comma separated algorithm names (overrides the configuration)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	opts := []app.Option{app.WithLogger(logger)}
	if methods := splitMethods(methodsFlag); len(methods) > 0 {
		opts = append(opts, app.WithMethods(methods))
	}
	// 未知算法名在打开 KV 后端之前报错
	if _, err := app.New(cfg, opts...).Registry(); err != nil {
		return err
	}

	out, closeSink, err := app.NewSink(cmd.Context(), cfg.Sink, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	run, err := app.New(cfg, append(opts, app.WithSink(out))...).Run(cmd.Context())
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), run)
	if len(run.Report.Succeeded()) == 0 {
		return core.NewDomainError(core.ModuleTrainer, core.ErrorCodeTrainingFailed, "no algorithm succeeded")
	}
	return nil
}

func splitMethods(raw []string) []string {
	var out []string
	for _, m := range raw {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func printSummary(w io.Writer, run *sink.Run) {
	fmt.Fprintf(w, "run %s\n", run.ID)
	fmt.Fprintf(w, "train: %d signal / %d background, test: %d signal / %d background\n\n",
		run.Stats.TrainSignal, run.Stats.TrainBackground, run.Stats.TestSignal, run.Stats.TestBackground)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tSTATUS\tROC\tEFF@B=0.01\tEFF@B=0.10\tEFF@B=0.30\tSEPARATION\tKS-PROB(S/B)\tDURATION")
	for _, r := range run.Report.Results {
		if r.Metrics == nil {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\t-\t%s\n", r.Algorithm, r.Status, r.Duration.Round(time.Millisecond))
			continue
		}
		m := r.Metrics
		ks := "-"
		if m.Overtraining != nil {
			ks = fmt.Sprintf("%.3f/%.3f", m.Overtraining.SignalProb, m.Overtraining.BackgroundProb)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.3f\t%.3f\t%.3f\t%.4f\t%s\t%s\n",
			r.Algorithm, r.Status, m.ROCIntegral, m.SigEffAtBkg01, m.SigEffAtBkg10, m.SigEffAtBkg30,
			m.Separation, ks, r.Duration.Round(time.Millisecond))
	}
	tw.Flush()

	for _, r := range run.Report.Failed() {
		fmt.Fprintf(w, "\n%s %s: %s", r.Algorithm, r.Status, r.Error)
	}
	if best, ok := run.Report.Ranking.Best(); ok {
		fmt.Fprintf(w, "\nbest by %s: %s\n", run.Report.Ranking.Metric, best)
	}
}
