package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/pushrelay/pkg/event"
)

// RedisPublisher はRedisのPUBLISHでイベントを配信する。
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher はRedisに接続し、疎通を確認したPublisherを返す。
func NewRedisPublisher(ctx context.Context, addr, channel string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗 (%s): %w", addr, err)
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

// Publish はイベントをJSONでPUBLISHする。
func (p *RedisPublisher) Publish(ctx context.Context, ev *event.Event) error {
	body, err := event.Encode(ev)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("RedisへのPUBLISHに失敗: %w", err)
	}
	return nil
}

// Close は接続を閉じる。
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
