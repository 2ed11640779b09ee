package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rushteam/mvakit/app"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Print the normalization weight of every source",
	Long:  `Print weight = exposure * cross_section / (positive - negative) for the signal and every background source.`,
	RunE:  runWeights,
}

func init() {
	rootCmd.AddCommand(weightsCmd)
}

func runWeights(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := app.New(cfg).Weights()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tROLE\tCROSS SECTION\tPOSITIVE\tNEGATIVE\tWEIGHT")
	for i, w := range table {
		role := "background"
		if i == 0 {
			role = "signal"
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%d\t%d\t%.6g\n", w.Name, role, w.CrossSection, w.Positive, w.Negative, w.Weight)
	}
	fmt.Fprintf(tw, "\nexposure: %g\n", cfg.Exposure)
	return tw.Flush()
}
