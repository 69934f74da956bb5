package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pushrelay/internal/domain"
	"github.com/nao1215/pushrelay/internal/events"
	"github.com/nao1215/pushrelay/pkg/event"
	"github.com/nao1215/pushrelay/pkg/metrics"
)

// DefaultConcurrency は同時送信数の既定値。
const DefaultConcurrency = 8

// SubscriptionStore はファンアウトに必要な購読の読み書き。
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Result は1通知分のファンアウト結果。
type Result struct {
	// Attempted は送信を試みた購読数（スナップショットの件数）。
	Attempted int
	// Delivered はプッシュサービスが受理した件数。
	Delivered int
	// Pruned はエンドポイント消滅により削除した件数。
	Pruned int
	// Failed は一時的な失敗の件数。
	Failed int
}

// Option はDispatcherの設定を変更する。
type Option func(*Dispatcher)

// WithConcurrency は同時送信数を指定する。
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithTerminalBaseURL はペイロードに付与するターミナルURLのベースを指定する。
func WithTerminalBaseURL(baseURL string) Option {
	return func(d *Dispatcher) { d.terminalBaseURL = baseURL }
}

// WithEmitter は購読削除イベントの配信先を指定する。
func WithEmitter(e *events.Emitter) Option {
	return func(d *Dispatcher) { d.emitter = e }
}

// WithLogger はロガーを指定する。
func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// Dispatcher は通知を全購読へ配信する。
type Dispatcher struct {
	store           SubscriptionStore
	sender          Sender
	emitter         *events.Emitter
	log             *zap.Logger
	concurrency     int
	terminalBaseURL string
}

// New はDispatcherを生成する。
func New(store SubscriptionStore, sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		sender:      sender,
		log:         zap.NewNop(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.emitter == nil {
		d.emitter = events.NewEmitter(nil, d.log)
	}
	return d
}

// Dispatch は通知を現在の全購読へ送り、全送信が終わるまで待つ。
// 個々の送信失敗は結果の件数に反映するだけで、エラーとしては返さない。
// 呼び出し元のキャンセルは送信中のプッシュには伝播させない。
func (d *Dispatcher) Dispatch(ctx context.Context, n domain.Notification) Result {
	start := time.Now()
	defer func() { metrics.RecordDispatch(time.Since(start)) }()

	ctx = context.WithoutCancel(ctx)

	subs, err := d.store.ListSubscriptions(ctx)
	if err != nil {
		d.log.Error("購読一覧の取得に失敗したため配信を中止しました",
			zap.Int64("notification_id", n.ID),
			zap.Error(err),
		)
		return Result{}
	}
	if len(subs) == 0 {
		return Result{}
	}

	payload, err := json.Marshal(domain.NewPushPayload(n, d.terminalBaseURL))
	if err != nil {
		d.log.Error("ペイロードの生成に失敗", zap.Int64("notification_id", n.ID), zap.Error(err))
		return Result{Attempted: len(subs), Failed: len(subs)}
	}

	var (
		mu     sync.Mutex
		result = Result{Attempted: len(subs)}
	)

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, sub := range subs {
		g.Go(func() error {
			outcome := d.deliver(ctx, n.ID, sub, payload)
			metrics.RecordPushSend(outcome)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case metrics.ResultDelivered:
				result.Delivered++
			case metrics.ResultPruned:
				result.Pruned++
			default:
				result.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	d.log.Info("通知を配信しました",
		zap.Int64("notification_id", n.ID),
		zap.Int("attempted", result.Attempted),
		zap.Int("delivered", result.Delivered),
		zap.Int("pruned", result.Pruned),
		zap.Int("failed", result.Failed),
	)
	return result
}

// deliver は1購読への送信と失敗分類を行い、結果ラベルを返す。
func (d *Dispatcher) deliver(ctx context.Context, id int64, sub domain.Subscription, payload []byte) string {
	err := d.sender.Send(ctx, sub, payload)
	switch {
	case err == nil:
		return metrics.ResultDelivered
	case domain.IsPermanentEndpoint(err):
		d.prune(ctx, sub.Endpoint, err)
		return metrics.ResultPruned
	case domain.IsTransientDelivery(err):
		d.log.Warn("プッシュ送信に失敗しました（購読は保持）",
			zap.Int64("notification_id", id),
			zap.String("endpoint", sub.Endpoint),
			zap.Error(err),
		)
		return metrics.ResultFailed
	default:
		// Senderが分類しなかった失敗も購読は消さない
		d.log.Error("分類できない送信エラー（購読は保持）",
			zap.Int64("notification_id", id),
			zap.String("endpoint", sub.Endpoint),
			zap.Error(err),
		)
		return metrics.ResultFailed
	}
}

// prune は消滅したエンドポイントの購読を削除する。
func (d *Dispatcher) prune(ctx context.Context, endpoint string, cause error) {
	if err := d.store.DeleteSubscription(ctx, endpoint); err != nil {
		d.log.Error("消滅した購読の削除に失敗", zap.String("endpoint", endpoint), zap.Error(err))
		return
	}
	metrics.SubscriptionsPruned.Inc()

	status := 0
	var de *domain.DeliveryError
	if errors.As(cause, &de) {
		status = de.StatusCode
	}
	d.log.Info("消滅した購読を削除しました", zap.String("endpoint", endpoint), zap.Int("status", status))
	d.emitter.Emit(ctx, endpoint, event.AggregateTypeSubscription, event.TypeSubscriptionPruned,
		event.SubscriptionData{Endpoint: endpoint, StatusCode: status})
}
