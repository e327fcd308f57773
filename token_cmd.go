package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"parkrep/core/internal/auth"
)

func newTokenCmd(flags *globalFlags) *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a notification hub token for a subscriber",
		Long: `Mint a token that the serve command's WebSocket hub accepts when
websocket_auth_secret is configured. Pass it as ?auth_token= or X-Auth-Token.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				e, err := flags.load(cmd)
				if err != nil {
					return err
				}
				secret = e.cfg.WebSocketAuthSecret
			}
			if secret == "" {
				return errors.New("no hub secret: set websocket_auth_secret or pass --secret")
			}
			signer, err := auth.NewSigner(secret)
			if err != nil {
				return err
			}
			token, err := signer.Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Hub secret (defaults to the configured websocket_auth_secret)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "How long the token stays valid")
	return cmd
}
