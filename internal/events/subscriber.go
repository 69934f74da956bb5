package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/pkg/event"
)

// RedisSubscriber はRedisのチャンネルからイベントを受け取る。
type RedisSubscriber struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

// NewRedisSubscriber はRedisに接続し、疎通を確認したSubscriberを返す。
func NewRedisSubscriber(ctx context.Context, addr, channel string, log *zap.Logger) (*RedisSubscriber, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗 (%s): %w", addr, err)
	}
	return &RedisSubscriber{client: client, channel: channel, log: log}, nil
}

// Run はctxがキャンセルされるまでイベントを受け取り、handleへ渡す。
// デコードできないメッセージは読み飛ばす。
func (s *RedisSubscriber) Run(ctx context.Context, handle func(*event.Event) error) error {
	ps := s.client.Subscribe(ctx, s.channel)
	defer func() { _ = ps.Close() }()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("チャンネル %s の購読に失敗: %w", s.channel, err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("Redisの購読が切断されました")
			}
			ev, err := event.Decode([]byte(msg.Payload))
			if err != nil {
				s.log.Warn("イベントを読み飛ばしました", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if err := handle(ev); err != nil {
				return err
			}
		}
	}
}

// Close は接続を閉じる。
func (s *RedisSubscriber) Close() error {
	return s.client.Close()
}

// Describe はイベントを1行の説明にする。
func Describe(ev *event.Event) (string, error) {
	at := ev.CreatedAt.Local().Format("15:04:05")
	switch ev.EventType {
	case event.TypeNotificationCreated:
		d, err := event.DecodeData[event.NotificationCreatedData](ev)
		if err != nil {
			return "", err
		}
		origin := d.Session
		if d.Window != "" {
			origin += "/" + d.Window
		}
		if origin == "" {
			origin = "-"
		}
		return fmt.Sprintf("%s created  #%d [%s] %s (%s, pushed %d)", at, d.ID, d.Category, d.Message, origin, d.Pushed), nil
	case event.TypeNotificationRead, event.TypeNotificationDeleted:
		d, err := event.DecodeData[event.NotificationRefData](ev)
		if err != nil {
			return "", err
		}
		verb := "read"
		if ev.EventType == event.TypeNotificationDeleted {
			verb = "deleted"
		}
		return fmt.Sprintf("%s %-8s #%d", at, verb, d.ID), nil
	case event.TypeNotificationsCleared:
		return fmt.Sprintf("%s cleared  all notifications", at), nil
	case event.TypeSubscriptionAdded, event.TypeSubscriptionPruned:
		d, err := event.DecodeData[event.SubscriptionData](ev)
		if err != nil {
			return "", err
		}
		if ev.EventType == event.TypeSubscriptionPruned {
			return fmt.Sprintf("%s pruned   %s (status %d)", at, d.Endpoint, d.StatusCode), nil
		}
		return fmt.Sprintf("%s added    %s", at, d.Endpoint), nil
	default:
		return fmt.Sprintf("%s %s %s", at, ev.EventType, ev.AggregateID), nil
	}
}
