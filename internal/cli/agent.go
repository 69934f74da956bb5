package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pushrelay/internal/agent"
)

func newAgentCmd(opts *globalOptions) *cobra.Command {
	var (
		interval    time.Duration
		terminalURL string
		listen      string
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the desktop notification agent",
		Long: `Polls the server, shows new notifications in this terminal and keeps the unread badge in sync.

Type commands on stdin to act on a shown notification ("v 12" opens the app,
"t 12" the terminal, "d 12" dismisses, "x 12" closes and marks it read; "?" for help).
With --listen the app shell is also served locally and falls back to cached assets
while the server is unreachable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.serverURL == "" {
				return errors.New("server URL is not set (--url or PUSHRELAY_URL)")
			}
			upstream, err := url.Parse(opts.serverURL)
			if err != nil {
				return fmt.Errorf("invalid server URL %q: %w", opts.serverURL, err)
			}
			log, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			platform, err := agent.NewDesktopPlatform(cmd.OutOrStdout(), opts.serverURL, log)
			if err != nil {
				return err
			}
			api := agent.NewHTTPAPI(opts.client())
			a := agent.New(agent.Config{
				Scope:           opts.serverURL + "/",
				TerminalBaseURL: terminalURL,
			}, platform, api, api, nil, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.Install(ctx); err != nil {
				log.Warn("アセットの事前キャッシュに失敗", zap.Error(err))
			} else if err := a.Activate(ctx); err != nil {
				log.Warn("古いキャッシュの削除に失敗", zap.Error(err))
			}

			// 標準入力の読み込みはキャンセルできないので待たない
			console := agent.NewConsole(a, platform, cmd.OutOrStdout())
			go func() {
				if err := console.Run(ctx, cmd.InOrStdin()); err != nil {
					log.Debug("コンソールの入力を読めません", zap.Error(err))
				}
			}()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return agent.NewPoller(a, interval).Run(gctx) })
			if listen != "" {
				g.Go(func() error { return a.ServeShell(gctx, listen, upstream) })
			}
			err = g.Wait()

			if ignored := a.Abandon(); len(ignored) > 0 {
				log.Info("操作されなかった通知があります", zap.Strings("tags", ignored))
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", agent.DefaultPollInterval, "Polling interval")
	cmd.Flags().StringVar(&terminalURL, "terminal-url", os.Getenv("PUSHRELAY_TERMINAL_URL"), "Base URL of the web terminal")
	cmd.Flags().StringVar(&listen, "listen", "", "Serve the app shell on this address (e.g. 127.0.0.1:3001)")
	return cmd
}
