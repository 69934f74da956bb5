package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/pushrelay/internal/config"
	"github.com/nao1215/pushrelay/internal/vapid"
)

func newVAPIDCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vapid",
		Short: "Print the server's VAPID public key (generated on first use)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			keys, created, err := vapid.LoadOrCreate(cfg.Push.VAPIDFile)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.ErrOrStderr(), "generated new VAPID key pair: %s\n", cfg.Push.VAPIDFile)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), keys.PublicKey)
			return err
		},
	}
}
