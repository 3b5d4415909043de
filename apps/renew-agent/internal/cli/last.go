package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/store"
)

func newLastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Show the most recent renewal session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(d *storeDeps) error {
				rec, err := d.sessions.Latest(cmd.Context())
				if errors.Is(err, store.ErrKeyNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
					return nil
				}
				if err != nil {
					return err
				}
				printSnapshot(cmd, session.FromRecord(rec))
				return nil
			})
		},
	}
}

func printSnapshot(cmd *cobra.Command, s session.Snapshot) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session:  %s (%s)\n", s.ID, s.Origin)
	fmt.Fprintf(w, "School:   %s\n", s.School)
	fmt.Fprintf(w, "State:    %s\n", s.State)
	if s.Outcome != "" {
		fmt.Fprintf(w, "Outcome:  %s\n", s.Outcome)
		fmt.Fprintf(w, "          %s\n", s.Title)
	}
	if s.NumUpassSeen != nil {
		fmt.Fprintf(w, "Passes:   %d\n", *s.NumUpassSeen)
	}
	fmt.Fprintf(w, "Started:  %s\n", s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n", s.UpdatedAt.Sub(s.StartedAt).Round(time.Millisecond))
	for i, p := range s.Pages {
		fmt.Fprintf(w, "  %2d %s\n", i+1, p.URL)
	}
}
