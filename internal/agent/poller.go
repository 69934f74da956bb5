package agent

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/domain"
)

// DefaultPollInterval は一覧を再取得する既定の間隔。
const DefaultPollInterval = 30 * time.Second

// Poller はプッシュを受け取れない端末のために一覧を定期取得し、
// 新しい未読通知をプッシュと同じ経路で表示してバッジを同期する。
type Poller struct {
	agent    *Agent
	interval time.Duration
	// lastID は表示済みの最大の通知ID。
	lastID int64
	// primed は初回取得を済ませたかどうか。初回は既存分を表示しない。
	primed bool
}

// NewPoller はPollerを生成する。intervalが0以下なら既定値を使う。
func NewPoller(a *Agent, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{agent: a, interval: interval}
}

// Run はctxがキャンセルされるまで定期取得を続ける。
func (p *Poller) Run(ctx context.Context) error {
	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll は1回分の取得と表示、バッジ同期を行い、表示した件数を返す。
func (p *Poller) Poll(ctx context.Context) int {
	a := p.agent
	list, err := a.api.ListNotifications(ctx)
	if err != nil {
		a.log.Warn("通知一覧の取得に失敗", zap.Error(err))
		return 0
	}

	shown := 0
	maxID := p.lastID
	// 一覧は新しい順なので古いものから表示する
	for i := len(list) - 1; i >= 0; i-- {
		n := list[i]
		if n.ID > maxID {
			maxID = n.ID
		}
		if !p.primed || n.ID <= p.lastID || n.Read {
			continue
		}
		raw, err := json.Marshal(domain.NewPushPayload(n, ""))
		if err != nil {
			continue
		}
		if a.HandlePush(ctx, raw) == StateDisplayed {
			shown++
		}
	}
	p.lastID = maxID
	p.primed = true

	if shown > 0 {
		// 表示のたびにHandlePushが同期している
		return shown
	}
	if err := a.applyBadge(ctx, domain.UnreadCount(list)); err != nil {
		a.log.Debug("バッジの更新に失敗", zap.Error(err))
	}
	return shown
}
