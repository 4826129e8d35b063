package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/admitkit/medmatch/pkg/masterdata"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the master-data registry",
}

var registryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-type entity counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mm, err := newClient()
		if err != nil {
			return err
		}
		stats := mm.Registry().Stats()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tCOUNT")
		for _, t := range []masterdata.EntityType{
			masterdata.EntityTypeState,
			masterdata.EntityTypeCollege,
			masterdata.EntityTypeCourse,
			masterdata.EntityTypeCategory,
			masterdata.EntityTypeQuota,
		} {
			fmt.Fprintf(w, "%s\t%d\n", t, stats[t])
		}
		return w.Flush()
	},
}

func init() {
	registryCmd.AddCommand(registryStatsCmd)
	rootCmd.AddCommand(registryCmd)
}
