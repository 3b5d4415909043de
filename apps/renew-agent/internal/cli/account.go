package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/credential"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/school"
	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the stored school account",
	}
	cmd.AddCommand(newAccountSetCmd())
	cmd.AddCommand(newAccountShowCmd())
	cmd.AddCommand(newAccountDeleteCmd())
	return cmd
}

// withStore は単発コマンド用に設定を読み込み、Valkeyに接続してfnを実行する。
func withStore(cmd *cobra.Command, fn func(d *storeDeps) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogger(cfg, cmd.ErrOrStderr())

	d, err := openStore(cfg, true)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

func newAccountSetCmd() *cobra.Command {
	var username, schoolName string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the school account used to sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := school.ByShortName(schoolName)
			if err != nil {
				return apperr.Invalid("school", apperr.ErrInvalidSchool, "%q is not a participating school", schoolName)
			}
			if !passwordStdin {
				return apperr.Invalid("password", apperr.ErrEmptyCredential, "pass the password on stdin with --password-stdin")
			}
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			return withStore(cmd, func(d *storeDeps) error {
				a := credential.Account{Username: username, Password: password, School: sc}
				if err := d.vault.Save(cmd.Context(), a); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved account %s for %s\n", username, sc.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "School username")
	cmd.Flags().StringVarP(&schoolName, "school", "s", "", "School short name as listed by the schools command")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("school")
	return cmd
}

// readPassword は標準入力の1行目をパスワードとして読む。
func readPassword(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newAccountShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored account without the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(d *storeDeps) error {
				a, err := d.vault.Load(cmd.Context())
				if errors.Is(err, credential.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No account stored.")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Username: %s\nSchool:   %s (%s)\n",
					a.Username, a.School.Name, a.School.ShortName)
				return nil
			})
		},
	}
}

func newAccountDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the stored account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(d *storeDeps) error {
				if err := d.vault.Delete(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Account deleted.")
				return nil
			})
		},
	}
}
