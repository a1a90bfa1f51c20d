package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/n0izn0iz/plughost/pkg/clap"
	"github.com/n0izn0iz/plughost/pkg/discovery"
)

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir...]",
		Short: "List the installed plugins",
		Long:  "List the plugins found in the standard CLAP locations and CLAP_PATH, or in the given directories.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() // flushes buffer, if any

			s := discovery.CLAP()
			roots := args
			if len(roots) == 0 {
				roots = s.Roots()
			}
			bundles, err := discovery.Find(cmd.Context(), roots, s, clap.Open, logger)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, b := range bundles {
				fmt.Fprintln(w, b.Path())
				for _, d := range b.Descriptors() {
					fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", d.ID, d.Name, d.Vendor, d.Version)
				}
				_ = b.Close()
			}
			return w.Flush()
		},
	}
}
