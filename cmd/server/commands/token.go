package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/asisten-gizi/server/internal/auth"
	"github.com/spf13/cobra"
)

func NewTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Long:  `Sign a token with JWT_SECRET. Only needed when JWT_SECRET is set on the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set, the API does not require tokens")
			}
			a, err := auth.NewAuthenticator(cfg.JWTSecret)
			if err != nil {
				return err
			}
			token, err := a.GenerateToken(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "client", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}
