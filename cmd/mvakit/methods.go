package main

import (
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rushteam/mvakit/algorithm"
	"github.com/rushteam/mvakit/app"
	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/registry"
)

var methodsCmd = &cobra.Command{
	Use:   "methods [NAME...]",
	Short: "List the algorithm catalog",
	Long: `List every algorithm of the catalog (or only the named ones) with its family,
whether it is enabled and its option string. When the configuration file exists,
remote algorithms, option overrides and the configured method list are applied.`,
	RunE: runMethods,
}

func init() {
	rootCmd.AddCommand(methodsCmd)
}

func runMethods(cmd *cobra.Command, args []string) error {
	reg := registry.Default()
	if cfg, err := loadConfig(); err == nil {
		if reg, err = app.New(cfg).Registry(); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	implemented := make(map[string]bool)
	for _, f := range algorithm.SupportedFamilies() {
		implemented[f] = true
	}

	specs := reg.Specs()
	if len(args) > 0 {
		specs = specs[:0]
		for _, name := range args {
			s, ok := reg.Spec(name)
			if !ok {
				return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeUnknownAlgorithm,
					fmt.Sprintf("unknown algorithm %q (valid: %v)", name, reg.Names()))
			}
			specs = append(specs, s)
		}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFAMILY\tENABLED\tIMPLEMENTED\tOPTIONS")
	for _, s := range specs {
		impl := implemented[s.Family] || s.Family == registry.FamilyRPC
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Family, yesNo(s.Enabled), yesNo(impl), s.Options)
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
