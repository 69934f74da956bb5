// Package hook は通知フックの処理を行う。
//
// フックは標準入力からJSONを読み、tmuxのセッション名とウィンドウ名を添えて
// サーバーの POST /api/notify に通知を投入する。
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/domain"
	"github.com/nao1215/pushrelay/pkg/httpclient"
)

const (
	// DefaultMessage は入力から本文が得られない場合の本文。
	DefaultMessage = "Needs attention"
	// DefaultCategory は入力から通知種別が得られない場合の種別。
	DefaultCategory = domain.DefaultCategory
	// Timeout はサーバーへの送信タイムアウト。
	Timeout = 5 * time.Second
)

// maxInput は標準入力から読み取る最大バイト数。
const maxInput = 1 << 20

// Input はフックに渡されるJSON。
type Input struct {
	// Title は通知タイトル。あれば本文として優先する。
	Title string `json:"title"`
	// Message は通知本文。
	Message string `json:"message"`
	// Category は通知種別。
	Category string `json:"notification_type"`
}

// Request はサーバーへ送る通知投入リクエスト。
type Request struct {
	Session  string `json:"session"`
	Window   string `json:"window"`
	Message  string `json:"message"`
	Category string `json:"notification_type"`
}

// Response はサーバーの応答。
type Response struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
	Pushed  int   `json:"pushed"`
}

// ParseInput は入力を読み取り本文と種別を返す。
// 空や不正なJSONの場合も既定値で処理を続ける。
func ParseInput(r io.Reader) (message, category string, err error) {
	message, category = DefaultMessage, DefaultCategory
	if r == nil {
		return message, category, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r, maxInput))
	if err != nil {
		return message, category, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return message, category, nil
	}

	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return message, category, err
	}
	switch {
	case in.Title != "":
		message = in.Title
	case in.Message != "":
		message = in.Message
	}
	if in.Category != "" {
		category = in.Category
	}
	return message, category, nil
}

// Runner は外部コマンドを実行して標準出力を返す。
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// execRunner はos/execでコマンドを実行する。
func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// TmuxContext は現在のtmuxセッション名とウィンドウ名を返す。
// tmuxの外で実行された場合はどちらも空になる。
func TmuxContext(ctx context.Context, run Runner) (session, window string) {
	s, err := run(ctx, "tmux", "display-message", "-p", "#{session_name}")
	if err != nil {
		return "", ""
	}
	w, err := run(ctx, "tmux", "display-message", "-p", "#{window_name}")
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(string(s)), strings.TrimSpace(string(w))
}

// Option はHookの設定を変更する。
type Option func(*Hook)

// WithRunner はtmuxの呼び出しに使うRunnerを差し替える。
func WithRunner(run Runner) Option {
	return func(h *Hook) { h.run = run }
}

// WithLogger はロガーを指定する。
func WithLogger(log *zap.Logger) Option {
	return func(h *Hook) { h.log = log }
}

// Hook は通知フック。
type Hook struct {
	client *httpclient.Client
	run    Runner
	log    *zap.Logger
}

// New はHookを生成する。clientのベースURLが空の場合、Sendはエラーを返す。
func New(client *httpclient.Client, opts ...Option) *Hook {
	h := &Hook{client: client, run: execRunner, log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ErrNoServer はサーバーURLが設定されていないことを表す。
var ErrNoServer = errors.New("サーバーURLが設定されていません (PUSHRELAY_URL)")

// Send は入力から通知を組み立ててサーバーに投入する。
func (h *Hook) Send(ctx context.Context, stdin io.Reader) (*Response, error) {
	message, category, err := ParseInput(stdin)
	if err != nil {
		h.log.Warn("フック入力の解析に失敗、既定値で送信します", zap.Error(err))
	}

	session, window := TmuxContext(ctx, h.run)
	h.log.Debug("tmux", zap.String("session", session), zap.String("window", window))

	if h.client == nil || h.client.BaseURL() == "" {
		return nil, ErrNoServer
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req := Request{Session: session, Window: window, Message: message, Category: category}
	var resp Response
	if err := h.client.PostJSON(ctx, "/api/notify", req, &resp); err != nil {
		return nil, err
	}
	h.log.Info("通知を送信しました", zap.Int64("id", resp.ID), zap.Int("pushed", resp.Pushed))
	return &resp, nil
}
