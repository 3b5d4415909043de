package cli

import (
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/tui"
)

func newMonitorCmd() *cobra.Command {
	var agentURL, logFile string
	var noAgent bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Browse renewal history and watch the running agent",
		Long: `monitor opens a terminal view of recent renewal sessions read from Valkey.
When an agent is serving the HTTP API, its active session is shown live and
a renewal can be requested with n or cancelled with x.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// ログは--log-file指定時のみ出力する
			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			initLogger(cfg, w)

			d, err := openStore(cfg, true)
			if err != nil {
				return err
			}
			defer d.Close()

			var agent tui.Agent
			target := "valkey " + cfg.ValkeyAddr()
			if !noAgent {
				if agentURL == "" {
					agentURL = defaultAgentURL(cfg.ListenAddr)
				}
				agent = tui.NewAgentClient(agentURL)
				target += " / agent " + agentURL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return tui.NewMonitor(d.sessions, agent, target, interval).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&agentURL, "agent", "", "Base URL of the running agent (default derived from LISTEN_ADDR)")
	cmd.Flags().BoolVar(&noAgent, "no-agent", false, "Show history only without contacting the agent")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Append logs to this file")
	return cmd
}

// defaultAgentURL は待ち受けアドレスからローカルのURLを組み立てる。
func defaultAgentURL(listenAddr string) string {
	if strings.HasPrefix(listenAddr, ":") {
		return "http://127.0.0.1" + listenAddr
	}
	if strings.HasPrefix(listenAddr, "0.0.0.0:") {
		return "http://127.0.0.1" + strings.TrimPrefix(listenAddr, "0.0.0.0")
	}
	return "http://" + listenAddr
}
