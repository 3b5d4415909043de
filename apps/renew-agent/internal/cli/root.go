// Package cli はrenew-agentのコマンドラインを提供する。
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// AppName はログ・トレースに付けるアプリケーション名
const AppName = "renew-agent"

// NewRootCmd はルートコマンドを生成する。
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   AppName,
		Short: "UPassBC renewal agent",
		Long: `renew-agent renews the monthly UPass on UPassBC by driving the site
through a headless or Chrome rendering surface.

Configuration is read from environment variables (REDIS_HOST, REDIS_PORT,
ACCOUNT_SEAL_KEY, HOME_URL, SURFACE, ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(version))
	root.AddCommand(newRenewCmd(version))
	root.AddCommand(newAccountCmd())
	root.AddCommand(newLastCmd())
	root.AddCommand(newSchoolsCmd())
	root.AddCommand(newMonitorCmd())
	return root
}

// Execute はルートコマンドを実行する。
func Execute(version string) error {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
