// Package event は通知ライフサイクルイベントの型を定義する。
//
// 通知の作成・既読化・削除や購読の追加・削除をイベントとして表し、
// Redis Pub/SubやRabbitMQといった外部の購読者へ配信するために使う。
package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeNotification は通知エンティティを表す。
	AggregateTypeNotification AggregateType = "Notification"
	// AggregateTypeSubscription は購読エンティティを表す。
	AggregateTypeSubscription AggregateType = "Subscription"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeNotificationCreated は通知が保存されたことを表す。
	TypeNotificationCreated Type = "NotificationCreated"
	// TypeNotificationRead は通知が既読になったことを表す。
	TypeNotificationRead Type = "NotificationRead"
	// TypeNotificationDeleted は通知が削除されたことを表す。
	TypeNotificationDeleted Type = "NotificationDeleted"
	// TypeNotificationsCleared は全通知が削除されたことを表す。
	TypeNotificationsCleared Type = "NotificationsCleared"

	// TypeSubscriptionAdded は購読が登録されたことを表す。
	TypeSubscriptionAdded Type = "SubscriptionAdded"
	// TypeSubscriptionPruned はプッシュサービスが消滅を報告した購読を削除したことを表す。
	TypeSubscriptionPruned Type = "SubscriptionPruned"
)

// RoutingKey はメッセージブローカーで使うルーティングキーを返す。
// 例: "notification.created"
func (t Type) RoutingKey() string {
	switch t {
	case TypeNotificationCreated:
		return "notification.created"
	case TypeNotificationRead:
		return "notification.read"
	case TypeNotificationDeleted:
		return "notification.deleted"
	case TypeNotificationsCleared:
		return "notification.cleared"
	case TypeSubscriptionAdded:
		return "subscription.added"
	case TypeSubscriptionPruned:
		return "subscription.pruned"
	default:
		return "unknown"
	}
}

// Event は配信される不変のイベントレコードを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// NotificationCreatedData はNotificationCreatedイベントのデータ。
type NotificationCreatedData struct {
	// ID は通知ID。
	ID int64 `json:"id"`
	// Session は発生元のセッション名。
	Session string `json:"session"`
	// Window は発生元のウィンドウ名。
	Window string `json:"window"`
	// Message は通知本文。
	Message string `json:"message"`
	// Category は通知種別。
	Category string `json:"notification_type"`
	// Pushed はファンアウト対象となった購読数。
	Pushed int `json:"pushed"`
}

// NotificationRefData は通知IDだけを運ぶイベントのデータ。
// NotificationRead / NotificationDeleted で使う。
type NotificationRefData struct {
	// ID は通知ID。
	ID int64 `json:"id"`
}

// SubscriptionData は購読関連イベントのデータ。
type SubscriptionData struct {
	// Endpoint は購読先URL。
	Endpoint string `json:"endpoint"`
	// StatusCode は削除の契機となったプッシュサービスの応答コード。
	StatusCode int `json:"status_code,omitempty"`
}
