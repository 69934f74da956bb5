package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"github.com/nao1215/pushrelay/pkg/event"
)

// AMQPPublisher はRabbitMQのtopic exchangeへイベントを配信する。
// ルーティングキーは event.Type.RoutingKey() を使う。
type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	// mu はチャンネルへの並行Publishを直列化する。
	mu sync.Mutex
}

// NewAMQPPublisher はRabbitMQに接続し、exchangeを宣言したPublisherを返す。
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQへの接続に失敗: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("チャンネルのオープンに失敗: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("exchangeの宣言に失敗: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish はイベントを永続メッセージとして配信する。
func (p *AMQPPublisher) Publish(ctx context.Context, ev *event.Event) error {
	body, err := event.Encode(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn.IsClosed() {
		return fmt.Errorf("RabbitMQとの接続が切断されています")
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		ev.EventType.RoutingKey(),
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			MessageId:    ev.ID,
			Timestamp:    ev.CreatedAt,
			Type:         string(ev.EventType),
		},
	)
	if err != nil {
		return fmt.Errorf("RabbitMQへのPublishに失敗: %w", err)
	}
	return nil
}

// Close はチャンネルと接続を閉じる。
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}
