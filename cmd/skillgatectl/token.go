package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valinor-ai/skillgate/internal/auth"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var (
		subject string
		scopes  []string
		hours   int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the management API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			expiry := cfg.Auth.ExpiryHours
			if hours > 0 {
				expiry = hours
			}
			svc := auth.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.Issuer, expiry)
			token, err := svc.CreateToken(&auth.Operator{Subject: subject, Scopes: scopes})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator identity recorded in the token (required)")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeAuditRead}, "granted scopes: audit:read, cache:write")
	cmd.Flags().IntVar(&hours, "expiry-hours", 0, "token lifetime (default: auth.expiryhours from config)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
