package domain

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// TitlePrefix はプッシュ通知タイトルの接頭辞。
const TitlePrefix = "Claude: "

// PushPayload は端末へ送るプッシュメッセージの本体。
type PushPayload struct {
	// Title は通知タイトル。
	Title string `json:"title"`
	// Body は通知本文。
	Body string `json:"body"`
	// Data はエージェントが元の通知を参照するための付帯情報。
	Data PushData `json:"data"`
}

// PushData はプッシュメッセージの付帯情報。
type PushData struct {
	ID          int64  `json:"id"`
	Session     string `json:"session,omitempty"`
	Window      string `json:"window,omitempty"`
	Category    string `json:"notification_type,omitempty"`
	TerminalURL string `json:"terminalUrl,omitempty"`
}

// NewPushPayload は通知からプッシュメッセージを組み立てる。
// terminalBaseURLが空でなくセッション名がある場合はターミナルへのリンクを付与する。
func NewPushPayload(n Notification, terminalBaseURL string) PushPayload {
	return PushPayload{
		Title: Title(n.Session, n.Window),
		Body:  n.Message,
		Data: PushData{
			ID:          n.ID,
			Session:     n.Session,
			Window:      n.Window,
			Category:    n.Category,
			TerminalURL: TerminalURL(terminalBaseURL, n.Session),
		},
	}
}

// Title はウィンドウ名、セッション名、"Notification" の順で見つかった名前からタイトルを作る。
func Title(session, window string) string {
	switch {
	case window != "":
		return TitlePrefix + window
	case session != "":
		return TitlePrefix + session
	default:
		return TitlePrefix + "Notification"
	}
}

// TerminalURL はセッションを開くターミナルURLを組み立てる。
// baseURLかsessionが空の場合は空文字列を返す。
func TerminalURL(baseURL, session string) string {
	if baseURL == "" || session == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/?tmux_session=" + url.QueryEscape(session)
}

// ParsePushPayload は受信したプッシュメッセージを検証して読み込む。
// 空、またはJSONとして不正な場合はエラーを返す。
// IDがないメッセージも受け付ける。その場合Data.IDは0のまま。
func ParsePushPayload(raw []byte) (PushPayload, error) {
	if len(raw) == 0 {
		return PushPayload{}, errors.New("プッシュメッセージが空です")
	}
	var p PushPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return PushPayload{}, err
	}
	if p.Data.ID < 0 {
		p.Data.ID = 0
	}
	if p.Title == "" {
		p.Title = Title(p.Data.Session, p.Data.Window)
	}
	return p, nil
}
