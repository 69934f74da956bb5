package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/config"
	"github.com/nao1215/pushrelay/internal/events"
	"github.com/nao1215/pushrelay/pkg/event"
)

func newEventsCmd(opts *globalOptions) *cobra.Command {
	var (
		addr    string
		channel string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow lifecycle events published to Redis",
		Long: `Subscribes to the Redis channel the server publishes lifecycle events to
and prints one line per event until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				return fmt.Errorf("redis address is not set (--redis or PUSHRELAY_REDIS_ADDR)")
			}
			log, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			sub, err := events.NewRedisSubscriber(cmd.Context(), addr, channel, log)
			if err != nil {
				return err
			}
			defer func() { _ = sub.Close() }()

			return sub.Run(cmd.Context(), printEvent(cmd.OutOrStdout(), log))
		},
	}

	cmd.Flags().StringVar(&addr, "redis", os.Getenv("PUSHRELAY_REDIS_ADDR"), "Redis address (PUSHRELAY_REDIS_ADDR)")
	cmd.Flags().StringVar(&channel, "channel", config.Default().Events.RedisChannel, "Redis channel")
	return cmd
}

// printEvent は受け取ったイベントを1行ずつ書き出す関数を返す。
func printEvent(w io.Writer, log *zap.Logger) func(*event.Event) error {
	return func(ev *event.Event) error {
		line, err := events.Describe(ev)
		if err != nil {
			log.Warn("イベントのデータを解釈できません", zap.String("event_id", ev.ID), zap.Error(err))
			line = fmt.Sprintf("%s %s", ev.EventType, ev.AggregateID)
		}
		_, err = fmt.Fprintln(w, line)
		return err
	}
}
