// Package events は通知ライフサイクルイベントを外部の購読者へ配信する。
//
// 配信はプッシュ送信と同じくベストエフォートで、失敗してもHTTPリクエストは失敗させない。
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/pkg/event"
)

// Publisher はイベントを1件配信する。
type Publisher interface {
	Publish(ctx context.Context, ev *event.Event) error
	Close() error
}

// Nop は何もしないPublisher。
type Nop struct{}

// Publish は何もしない。
func (Nop) Publish(context.Context, *event.Event) error { return nil }

// Close は何もしない。
func (Nop) Close() error { return nil }

// Multi は複数のPublisherへ同じイベントを配信する。
// 1つが失敗しても残りへの配信は続ける。
type Multi []Publisher

// Publish は全Publisherへ配信し、失敗をまとめて返す。
func (m Multi) Publish(ctx context.Context, ev *event.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close は全Publisherを閉じる。
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishTimeout は1件のイベント配信に待つ上限。
const PublishTimeout = 2 * time.Second

// Emitter はイベントを組み立てて配信し、失敗をログに記録する。
type Emitter struct {
	publisher Publisher
	log       *zap.Logger
	timeout   time.Duration
}

// EmitterOption はEmitterの設定を変更する。
type EmitterOption func(*Emitter)

// WithPublishTimeout は1件の配信に待つ上限を指定する。
func WithPublishTimeout(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEmitter はEmitterを生成する。publisherがnilの場合はNopを使う。
func NewEmitter(publisher Publisher, log *zap.Logger, opts ...EmitterOption) *Emitter {
	if publisher == nil {
		publisher = Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Emitter{publisher: publisher, log: log, timeout: PublishTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit はイベントを配信する。失敗はログに残すだけで呼び出し元には返さない。
// 呼び出し元のキャンセルとは切り離し、PublishTimeoutで打ち切る。
func (e *Emitter) Emit(ctx context.Context, aggregateID string, aggregateType event.AggregateType, typ event.Type, data any) {
	ev, err := event.New(aggregateID, aggregateType, typ, data)
	if err != nil {
		e.log.Error("イベントの生成に失敗", zap.String("event_type", string(typ)), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.log.Warn("イベントの配信に失敗",
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(typ)),
			zap.Error(err),
		)
	}
}

// Close は配下のPublisherを閉じる。
func (e *Emitter) Close() error {
	return e.publisher.Close()
}

// NotificationAggregateID は通知IDからAggregateIDを組み立てる。
func NotificationAggregateID(id int64) string {
	return fmt.Sprintf("notification-%d", id)
}
