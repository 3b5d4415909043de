package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/school"
)

func newSchoolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schools",
		Short: "List participating schools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSHORT\tNAME")
			for _, s := range school.All() {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", s.ID, s.ShortName, s.Name)
			}
			return tw.Flush()
		},
	}
}
