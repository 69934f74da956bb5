package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/domain"
)

// CacheName は現在のアセットキャッシュ名。内容を変えたら版を上げる。
const CacheName = "pushrelay-v1"

// PrecacheURLs はインストール時にキャッシュするアセット。
var PrecacheURLs = []string{"/", "/index.html", "/app.js", "/manifest.json"}

// vibratePattern は通知時の振動パターン（ミリ秒）。
var vibratePattern = []int{200, 100, 200}

// Config はエージェントの設定。
type Config struct {
	// Scope はエージェントが管理するURLの範囲（例: "http://localhost:3000/"）。
	Scope string
	// TerminalBaseURL はペイロードにterminalUrlがない場合に使うターミナルのベースURL。
	TerminalBaseURL string
}

// Agent は端末側の通知エージェント。
type Agent struct {
	platform Platform
	api      API
	network  Network
	cache    AssetCache
	cfg      Config
	log      *zap.Logger
	// now はタグ生成用の時刻取得関数。
	now func() time.Time

	mu sync.Mutex
	// states はタグごとの処理状態。
	states map[string]State
}

// New はAgentを生成する。cacheがnilの場合はMemoryCacheを使う。
func New(cfg Config, platform Platform, api API, network Network, cache AssetCache, log *zap.Logger) *Agent {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{
		platform: platform,
		api:      api,
		network:  network,
		cache:    cache,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		states:   make(map[string]State),
	}
}

// HandlePush はプッシュメッセージを受け取り、システム通知を表示する。
// ペイロードが空や不正な場合は何もせずStateAbortedを返す。エラーは表に出さない。
// 表示後はバッジを同期してから戻る。
func (a *Agent) HandlePush(ctx context.Context, raw []byte) State {
	state := a.show(ctx, raw)
	if state != StateDisplayed {
		return state
	}
	if _, err := a.SyncBadge(ctx); err != nil {
		a.log.Debug("バッジの同期に失敗", zap.Error(err))
	}
	return state
}

// show はペイロードを検証してシステム通知を表示する。
func (a *Agent) show(ctx context.Context, raw []byte) State {
	payload, err := domain.ParsePushPayload(raw)
	if err != nil {
		a.log.Debug("不正なプッシュメッセージを破棄しました", zap.Error(err))
		return StateAborted
	}
	opts := a.displayOptions(payload)
	a.setState(opts.Tag, StateReceived)

	if err := a.platform.ShowNotification(ctx, payload.Title, opts); err != nil {
		a.log.Warn("通知の表示に失敗", zap.Int64("id", payload.Data.ID), zap.Error(err))
		a.setState(opts.Tag, StateAborted)
		return StateAborted
	}
	a.setState(opts.Tag, StateDisplayed)
	return StateDisplayed
}

func (a *Agent) setState(tag string, s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states[tag] = s
}

// StateOf はタグの通知の処理状態を返す。知らないタグなら空文字列。
func (a *Agent) StateOf(tag string) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.states[tag]
}

// Abandon は表示されたまま操作されなかった通知をStateTimedOutOrIgnoredにし、そのタグを返す。
// エージェントの終了時に呼ぶ。通知そのものには触れない。
func (a *Agent) Abandon() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var tags []string
	for tag, s := range a.states {
		if s == StateDisplayed {
			a.states[tag] = StateTimedOutOrIgnored
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// displayOptions はペイロードから表示オプションを組み立てる。
// ターミナルへのリンクがある場合だけ terminal ボタンを付ける。
func (a *Agent) displayOptions(p domain.PushPayload) NotificationOptions {
	data := p.Data
	if data.TerminalURL == "" {
		data.TerminalURL = domain.TerminalURL(a.cfg.TerminalBaseURL, data.Session)
	}

	actions := make([]Action, 0, 3)
	if data.TerminalURL != "" {
		actions = append(actions, Action{Action: ActionTerminal, Title: "Open Terminal"})
	}
	actions = append(actions,
		Action{Action: ActionView, Title: "View"},
		Action{Action: ActionDismiss, Title: "Dismiss"},
	)

	return NotificationOptions{
		Body:               p.Body,
		Icon:               IconPath,
		Badge:              IconPath,
		Tag:                a.tag(data.ID),
		Renotify:           true,
		RequireInteraction: true,
		Vibrate:            vibratePattern,
		Actions:            actions,
		Data:               data,
	}
}

func (a *Agent) tag(id int64) string {
	if id <= 0 {
		return "claude-" + strconv.FormatInt(a.now().UnixMilli(), 10)
	}
	return "claude-" + strconv.FormatInt(id, 10)
}

// HandleNotificationClick は通知のクリックを処理する。
// dismissは閉じるだけ、terminalはターミナルを開くだけで既読にはしない。
// 本体のクリックはスコープ内の既存ウィンドウにフォーカスし、なければルートを開く。
func (a *Agent) HandleNotificationClick(ctx context.Context, ev ClickEvent) State {
	a.setState(ev.Tag, StateInteracted)
	if err := a.platform.CloseNotification(ctx, ev.Tag); err != nil {
		a.log.Debug("通知を閉じられませんでした", zap.String("tag", ev.Tag), zap.Error(err))
	}

	switch {
	case ev.Action == ActionDismiss:
		return StateInteracted
	case ev.Action == ActionTerminal && ev.Data.TerminalURL != "":
		if err := a.platform.OpenWindow(ctx, ev.Data.TerminalURL); err != nil {
			a.log.Warn("ターミナルを開けませんでした", zap.String("url", ev.Data.TerminalURL), zap.Error(err))
		}
		return StateInteracted
	}

	if err := a.focusOrOpen(ctx); err != nil {
		a.log.Warn("アプリケーションウィンドウを開けませんでした", zap.Error(err))
	}
	return StateInteracted
}

// focusOrOpen はスコープ内のウィンドウにフォーカスし、なければルートを開く。
func (a *Agent) focusOrOpen(ctx context.Context) error {
	windows, err := a.platform.MatchWindows(ctx)
	if err != nil {
		return fmt.Errorf("ウィンドウの列挙に失敗: %w", err)
	}
	for _, w := range windows {
		if a.cfg.Scope != "" && strings.Contains(w.URL, a.cfg.Scope) {
			return a.platform.Focus(ctx, w)
		}
	}
	return a.platform.OpenWindow(ctx, "/")
}

// HandleNotificationClose はボタンを押さずに閉じられた通知を既読にする。
// IDのない通知は既読にできないので閉じるだけ。既読化の失敗は無視し、再試行しない。
func (a *Agent) HandleNotificationClose(ctx context.Context, ev CloseEvent) State {
	a.setState(ev.Tag, StateInteracted)
	if ev.Data.ID <= 0 {
		return StateInteracted
	}
	if err := a.api.MarkRead(ctx, ev.Data.ID); err != nil {
		a.log.Debug("閉じた通知の既読化に失敗", zap.Int64("id", ev.Data.ID), zap.Error(err))
	}
	return StateInteracted
}

// フォアグラウンドのアプリケーションから届くメッセージ。
const (
	MessageUpdateBadge = "updateBadge"
	MessageClearBadge  = "clearBadge"
)

// HandleMessage はアプリケーションからのメッセージを処理する。未知のメッセージは無視する。
func (a *Agent) HandleMessage(ctx context.Context, msg string) error {
	switch msg {
	case MessageUpdateBadge:
		_, err := a.SyncBadge(ctx)
		return err
	case MessageClearBadge:
		return a.platform.ClearBadge(ctx)
	default:
		a.log.Debug("未知のメッセージを無視しました", zap.String("message", msg))
		return nil
	}
}

// SyncBadge は通知一覧を取得し、未読数をバッジに反映する。未読が0ならバッジを消す。
func (a *Agent) SyncBadge(ctx context.Context) (int, error) {
	list, err := a.api.ListNotifications(ctx)
	if err != nil {
		return 0, err
	}
	unread := domain.UnreadCount(list)
	return unread, a.applyBadge(ctx, unread)
}

// applyBadge はバッジを未読数に合わせる。
func (a *Agent) applyBadge(ctx context.Context, unread int) error {
	if unread > 0 {
		return a.platform.SetBadge(ctx, unread)
	}
	return a.platform.ClearBadge(ctx)
}

// Install はオフライン表示に必要なアセットを事前にキャッシュする。
// 1つでも取得できなければ何もキャッシュせずにエラーを返す。
func (a *Agent) Install(ctx context.Context) error {
	assets := make(map[string]*Asset, len(PrecacheURLs))
	for _, path := range PrecacheURLs {
		asset, err := a.network.Fetch(ctx, path)
		if err != nil {
			return fmt.Errorf("%s の事前キャッシュに失敗: %w", path, err)
		}
		if !asset.ok() {
			return fmt.Errorf("%s の事前キャッシュに失敗: status=%d", path, asset.Status)
		}
		assets[path] = asset
	}
	for path, asset := range assets {
		if err := a.cache.Put(ctx, CacheName, path, asset); err != nil {
			return fmt.Errorf("%s のキャッシュ保存に失敗: %w", path, err)
		}
	}
	return nil
}

// Activate は現在の版以外のキャッシュを削除する。
func (a *Agent) Activate(ctx context.Context) error {
	keys, err := a.cache.Keys(ctx)
	if err != nil {
		return fmt.Errorf("キャッシュ一覧の取得に失敗: %w", err)
	}
	var errs []error
	for _, k := range keys {
		if k == CacheName {
			continue
		}
		if err := a.cache.Delete(ctx, k); err != nil {
			errs = append(errs, err)
			continue
		}
		a.log.Info("古いキャッシュを削除しました", zap.String("cache", k))
	}
	return errors.Join(errs...)
}
