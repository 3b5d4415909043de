package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
)

func newRenewCmd(version string) *cobra.Command {
	var background, quiet bool
	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Renew the UPass once and print the outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			initLogger(cfg, cmd.ErrOrStderr())
			// 単発実行では終了後の再読み込みは不要
			cfg.ReloadAfterTerminal = false

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openAgent(ctx, cfg, version, true)
			if err != nil {
				return err
			}
			runCtx, cancelRun := context.WithCancel(context.Background())
			a.start(runCtx)
			defer func() {
				cancelRun()
				a.Close()
			}()

			printed := make(chan struct{})
			statuses, unsubscribe := a.coord.Subscribe()
			go func() {
				defer close(printed)
				for s := range statuses {
					if !quiet {
						fmt.Fprintln(cmd.ErrOrStderr(), s)
					}
				}
			}()

			renew := a.coord.Renew
			if background {
				renew = a.coord.RenewInBackground
			}
			o, err := renew(ctx)
			unsubscribe()
			<-printed
			if err != nil {
				return err
			}
			return reportOutcome(cmd, o)
		},
	}
	cmd.Flags().BoolVar(&background, "background", false, "Run as a background renewal")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	return cmd
}

// reportOutcome は結果を表示し、正常終了扱いでなければエラーを返す。
func reportOutcome(cmd *cobra.Command, o renewerr.Outcome) error {
	fmt.Fprintln(cmd.OutOrStdout(), o.Title())
	if !o.Settled() {
		return o.AsError()
	}
	return nil
}
