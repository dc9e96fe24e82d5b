package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"vce/pkg/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		role     string
		password string
	)
	cmd := &cobra.Command{
		Use:   "token <config> <subject>",
		Short: "Issue a bearer token for an agent or operator",
		Long: `Issue a bearer token signed with the configured auth secret. Agent
tokens may only query their own hostname. With --hash-password the command
instead prints a bcrypt hash for the password_hash setting.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password != "" {
				hash, err := auth.HashPassword(password)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			}
			if len(args) != 2 {
				return errors.New("token requires <config> and <subject>")
			}
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			subject := args[1]
			if role != auth.RoleAgent && role != auth.RoleOperator {
				return fmt.Errorf("unknown role %q", role)
			}
			if role == auth.RoleAgent && !slices.Contains(cfg.Hostnames(), subject) {
				return fmt.Errorf("%s is not a constellation node", subject)
			}
			iss := auth.NewIssuer(cfg.System.Auth.Secret, cfg.TokenTTL())
			tok, err := iss.Generate(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", auth.RoleAgent, "token role: agent|operator")
	cmd.Flags().StringVar(&password, "hash-password", "", "print a bcrypt hash of this password and exit")
	return cmd
}
