package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/admitkit/medmatch/pkg/masterdata"
	"github.com/admitkit/medmatch/pkg/review"
)

var (
	reviewKind   string
	reviewStatus string
	reviewType   string
	reviewNotes  string
	reviewChoice int64
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect and resolve pending review items",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List review items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mm, err := newClient()
		if err != nil {
			return err
		}

		items := mm.Reviews().List(review.Filter{
			Kind:       review.Kind(reviewKind),
			Status:     review.Status(reviewStatus),
			EntityType: masterdata.EntityType(reviewType),
		})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tTYPE\tSTATUS\tINPUT")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				item.ID, item.Kind, item.EntityType, item.Status, item.RawInput)
		}
		return w.Flush()
	},
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <id> <actor>",
	Short: "Approve a review item",
	Long: `Approves a pending review item. A NEW_ENTITY approval creates the
proposed master entity; other kinds link the input to an existing entity,
--entity selecting which candidate when there is more than one.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mm, err := newClient()
		if err != nil {
			return err
		}
		if err := mm.Reviews().Approve(args[0], args[1], reviewNotes, reviewChoice); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "approved %s\n", args[0])
		return nil
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <id> <actor>",
	Short: "Reject a review item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mm, err := newClient()
		if err != nil {
			return err
		}
		if err := mm.Reviews().Reject(args[0], args[1], reviewNotes); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rejected %s\n", args[0])
		return nil
	},
}

func init() {
	reviewListCmd.Flags().StringVar(&reviewKind, "kind", "", "filter by kind (NEW_ENTITY, LOW_CONFIDENCE, DUPLICATE, AMBIGUOUS)")
	reviewListCmd.Flags().StringVar(&reviewStatus, "status", "", "filter by status (PENDING, APPROVED, REJECTED)")
	reviewListCmd.Flags().StringVar(&reviewType, "type", "", "filter by entity type")
	reviewApproveCmd.Flags().StringVar(&reviewNotes, "notes", "", "reviewer notes")
	reviewApproveCmd.Flags().Int64Var(&reviewChoice, "entity", 0, "candidate entity id to link (0 = top candidate)")
	reviewRejectCmd.Flags().StringVar(&reviewNotes, "notes", "", "reviewer notes")

	reviewCmd.AddCommand(reviewListCmd, reviewApproveCmd, reviewRejectCmd)
	rootCmd.AddCommand(reviewCmd)
}
