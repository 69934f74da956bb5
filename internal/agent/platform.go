package agent

import (
	"context"

	"github.com/nao1215/pushrelay/internal/domain"
)

// 通知アクションの識別子。
const (
	ActionTerminal = "terminal"
	ActionView     = "view"
	ActionDismiss  = "dismiss"
)

// IconPath は通知アイコンとバッジ画像のパス。
const IconPath = "/icon-192.png"

// State は1通のプッシュメッセージの処理状態。
type State string

const (
	// StateReceived はプッシュを受信しただけの状態。
	StateReceived State = "received"
	// StateDisplayed は通知を表示し、利用者の操作待ちの状態。
	StateDisplayed State = "displayed"
	// StateInteracted は利用者がクリックまたは閉じる操作をした状態。
	StateInteracted State = "interacted"
	// StateTimedOutOrIgnored は表示されたまま操作されなかった状態。
	// プラットフォームが保持する間はエージェントは何もしない。
	StateTimedOutOrIgnored State = "timed_out_or_ignored"
	// StateAborted はペイロード不正などで表示に至らなかった状態。
	StateAborted State = "aborted"
)

// Action は通知に付けるボタン。
type Action struct {
	// Action はクリック時に渡される識別子。
	Action string
	// Title はボタンの表示名。
	Title string
}

// NotificationOptions はシステム通知の表示オプション。
type NotificationOptions struct {
	Body  string
	Icon  string
	Badge string
	// Tag は同じ通知の再表示をまとめるキー。
	Tag string
	// Renotify は同じタグでも再度知らせるかどうか。
	Renotify bool
	// RequireInteraction は利用者が操作するまで消えない通知にするかどうか。
	RequireInteraction bool
	Vibrate            []int
	Actions            []Action
	// Data はクリック/クローズ時に戻ってくる付帯情報。
	Data domain.PushData
}

// Window はエージェントが操作できるアプリケーションウィンドウ。
type Window struct {
	// ID はプラットフォーム内の識別子。
	ID string
	// URL は表示中のURL。
	URL string
}

// Platform は通知、バッジ、ウィンドウを操作する端末側の機能。
type Platform interface {
	ShowNotification(ctx context.Context, title string, opts NotificationOptions) error
	CloseNotification(ctx context.Context, tag string) error
	SetBadge(ctx context.Context, count int) error
	ClearBadge(ctx context.Context) error
	MatchWindows(ctx context.Context) ([]Window, error)
	Focus(ctx context.Context, w Window) error
	OpenWindow(ctx context.Context, url string) error
}

// ClickEvent は通知またはそのボタンのクリック。
type ClickEvent struct {
	// Action は押されたボタン。本体クリックなら空。
	Action string
	// Tag は通知のタグ。
	Tag string
	// Data は表示時に渡した付帯情報。
	Data domain.PushData
}

// CloseEvent はボタンを押さずに通知が閉じられたこと。
type CloseEvent struct {
	// Tag は通知のタグ。
	Tag string
	// Data は表示時に渡した付帯情報。
	Data domain.PushData
}
