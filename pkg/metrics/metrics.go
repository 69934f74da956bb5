// Package metrics はPrometheus向けのメトリクスを定義する。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 送信結果ラベル。
const (
	ResultDelivered = "delivered"
	ResultPruned    = "pruned"
	ResultFailed    = "failed"
)

var (
	// NotificationsCreated は保存された通知の総数。
	NotificationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushrelay_notifications_created_total",
		Help: "Total number of notifications persisted",
	})

	// PushSends はプッシュ送信の結果別件数。
	PushSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushrelay_push_sends_total",
			Help: "Total number of push sends by result",
		},
		[]string{"result"},
	)

	// SubscriptionsPruned は消滅により削除された購読の総数。
	SubscriptionsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushrelay_subscriptions_pruned_total",
		Help: "Total number of subscriptions removed after the push service reported them gone",
	})

	// DispatchDuration は1通知のファンアウト所要時間（秒）。
	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pushrelay_dispatch_duration_seconds",
		Help:    "Duration of one notification fan-out in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	})

	// HTTPRequestDuration はHTTPリクエストの処理時間（秒）。
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushrelay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordPushSend は送信結果を1件記録する。
func RecordPushSend(result string) {
	PushSends.WithLabelValues(result).Inc()
}

// RecordDispatch はファンアウト所要時間を記録する。
func RecordDispatch(duration time.Duration) {
	DispatchDuration.Observe(duration.Seconds())
}

// RecordHTTPRequestDuration はHTTPリクエストの処理時間を記録する。
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
