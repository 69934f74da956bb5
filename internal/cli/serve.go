package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/config"
	"github.com/nao1215/pushrelay/internal/dispatch"
	"github.com/nao1215/pushrelay/internal/events"
	"github.com/nao1215/pushrelay/internal/server"
	"github.com/nao1215/pushrelay/internal/store"
	"github.com/nao1215/pushrelay/internal/vapid"
	"github.com/nao1215/pushrelay/pkg/logger"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the notification server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, log)
		},
	}
}

// runServe は依存を組み立ててサーバーを起動し、ctxが終わるまでブロックする。
func runServe(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.Database.Driver == store.DriverSQLite && cfg.Database.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			return fmt.Errorf("データディレクトリの作成に失敗: %w", err)
		}
	}

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	keys, created, err := vapid.LoadOrCreate(cfg.Push.VAPIDFile)
	if err != nil {
		return err
	}
	if created {
		log.Info("VAPID鍵ペアを生成しました", zap.String("path", cfg.Push.VAPIDFile))
	}

	publisher, err := events.FromConfig(ctx, cfg.Events, log)
	if err != nil {
		return err
	}
	emitter := events.NewEmitter(publisher, log)
	defer func() { _ = emitter.Close() }()

	dispatcher := dispatch.New(st, dispatch.NewWebPushSender(keys, cfg.Push, nil),
		dispatch.WithConcurrency(cfg.Push.Concurrency),
		dispatch.WithTerminalBaseURL(cfg.Terminal.BaseURL),
		dispatch.WithEmitter(emitter),
		dispatch.WithLogger(log),
	)

	srv := server.New(cfg, server.Deps{
		Store:          st,
		Dispatcher:     dispatcher,
		Emitter:        emitter,
		VAPIDPublicKey: keys.PublicKey,
		Log:            log,
	})
	return srv.Run(ctx)
}
