package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pushrelay/internal/config"
	"github.com/nao1215/pushrelay/pkg/middleware"
)

func newTokenCmd(opts *globalOptions) *cobra.Command {
	var (
		producer string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for POST /api/notify",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set (config or PUSHRELAY_JWT_SECRET)")
			}
			token, err := middleware.GenerateProducerToken(cfg.Auth.JWTSecret, producer, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&producer, "producer", "hook", "Producer name embedded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (0 = no expiry)")
	return cmd
}
