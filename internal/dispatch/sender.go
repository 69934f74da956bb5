package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/nao1215/pushrelay/internal/config"
	"github.com/nao1215/pushrelay/internal/domain"
	"github.com/nao1215/pushrelay/internal/vapid"
)

// Sender は暗号化したペイロードを1つの購読へ送る。
// 失敗は *domain.DeliveryError で返す。
type Sender interface {
	Send(ctx context.Context, sub domain.Subscription, payload []byte) error
}

// WebPushSender はWeb Push Protocol（RFC 8030/8291/8292）で送信するSender。
type WebPushSender struct {
	// keys はサーバーのVAPID鍵ペア。
	keys *vapid.Keys
	// subscriber はVAPIDのsubject。mailto: は送信時にライブラリが付与する。
	subscriber string
	// ttl はプッシュサービスでの保持秒数。
	ttl int
	// urgency はプッシュの緊急度。
	urgency webpush.Urgency
	// timeout は1送信あたりのタイムアウト。
	timeout time.Duration
	// client は送信に使うHTTPクライアント。
	client *http.Client
}

// NewWebPushSender はVAPID鍵と送信設定からSenderを生成する。
// clientがnilの場合はhttp.DefaultClientを使う。
func NewWebPushSender(keys *vapid.Keys, cfg config.PushConfig, client *http.Client) *WebPushSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebPushSender{
		keys:       keys,
		subscriber: strings.TrimPrefix(cfg.Subject, "mailto:"),
		ttl:        cfg.TTLSeconds,
		urgency:    webpush.Urgency(cfg.Urgency),
		timeout:    cfg.Timeout(),
		client:     client,
	}
}

// Send はペイロードを暗号化して購読のエンドポイントへ送る。
func (s *WebPushSender) Send(ctx context.Context, sub domain.Subscription, payload []byte) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		TTL:             s.ttl,
		Urgency:         s.urgency,
		VAPIDPublicKey:  s.keys.PublicKey,
		VAPIDPrivateKey: s.keys.PrivateKey,
	})
	if err != nil {
		return &domain.DeliveryError{Endpoint: sub.Endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return classify(sub.Endpoint, resp)
}

// classify はプッシュサービスの応答を送信結果に変換する。
func classify(endpoint string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &domain.DeliveryError{Endpoint: endpoint, StatusCode: resp.StatusCode, Permanent: true}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.DeliveryError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("予期しない応答: %s", strings.TrimSpace(string(body))),
		}
	}
}
