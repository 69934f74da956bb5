package domain

import "time"

// DefaultCategory は通知種別が指定されなかった場合の既定値。
const DefaultCategory = "general"

// MaxListLimit は通知一覧で一度に返す最大件数。
const MaxListLimit = 50

// Keys はプッシュペイロードの暗号化に必要な端末固有の鍵素材。
type Keys struct {
	// P256dh は端末のECDH公開鍵（base64url）。
	P256dh string `json:"p256dh"`
	// Auth は端末の認証シークレット（base64url）。
	Auth string `json:"auth"`
}

// Subscription は1つの端末+ブラウザのプッシュ購読を表す。
// Endpointが一意キーとなる。
type Subscription struct {
	// Endpoint はプッシュサービスが発行した購読先URL。
	Endpoint string `json:"endpoint"`
	// Keys は暗号化用の鍵素材。
	Keys Keys `json:"keys"`
	// CreatedAt は購読が登録（または更新）された日時。
	CreatedAt time.Time `json:"created_at"`
}

// Validate は購読の必須項目を検証する。
func (s Subscription) Validate() error {
	if s.Endpoint == "" {
		return NewValidationError("endpoint", "endpointは必須です")
	}
	if s.Keys.P256dh == "" {
		return NewValidationError("keys.p256dh", "keys.p256dhは必須です")
	}
	if s.Keys.Auth == "" {
		return NewValidationError("keys.auth", "keys.authは必須です")
	}
	return nil
}

// Notification は永続化された通知レコード。
// 作成後はReadのみが変化する。
type Notification struct {
	// ID は単調増加する通知ID。再利用されない。
	ID int64 `json:"id"`
	// Session は発生元のセッション名。
	Session string `json:"session"`
	// Window は発生元のウィンドウ名。
	Window string `json:"window"`
	// Message は通知本文。
	Message string `json:"message"`
	// Category は通知種別。
	Category string `json:"notification_type"`
	// Timestamp は作成日時（UTC）。
	Timestamp time.Time `json:"timestamp"`
	// Read は既読状態。
	Read bool `json:"read"`
}

// CreateParams は通知作成時の入力。
type CreateParams struct {
	Session  string
	Window   string
	Message  string
	Category string
}

// Normalize は入力を検証し、種別の既定値を補う。
func (p CreateParams) Normalize() (CreateParams, error) {
	if p.Message == "" {
		return p, NewValidationError("message", "messageは必須です")
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	return p, nil
}

// ClampLimit は一覧取得件数を 1〜MaxListLimit に丸める。
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// UnreadCount は未読の件数を数える。
func UnreadCount(notifications []Notification) int {
	n := 0
	for _, v := range notifications {
		if !v.Read {
			n++
		}
	}
	return n
}
