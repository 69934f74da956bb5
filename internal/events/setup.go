package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/config"
)

// FromConfig は設定に応じてPublisherを組み立てる。
// 何も設定されていない場合はNopを返す。
func FromConfig(ctx context.Context, cfg config.EventsConfig, log *zap.Logger) (Publisher, error) {
	var publishers Multi

	if cfg.RedisAddr != "" {
		p, err := NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			return nil, err
		}
		log.Info("Redisへのイベント配信を有効化しました",
			zap.String("addr", cfg.RedisAddr),
			zap.String("channel", cfg.RedisChannel),
		)
		publishers = append(publishers, p)
	}

	if cfg.AMQPURL != "" {
		p, err := NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			_ = publishers.Close()
			return nil, fmt.Errorf("AMQP Publisherの初期化に失敗: %w", err)
		}
		log.Info("RabbitMQへのイベント配信を有効化しました", zap.String("exchange", cfg.AMQPExchange))
		publishers = append(publishers, p)
	}

	if len(publishers) == 0 {
		return Nop{}, nil
	}
	return publishers, nil
}
