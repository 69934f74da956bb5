package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("NotificationCreatedDataでイベントを正常に生成できること", func(t *testing.T) {
		t.Parallel()

		data := NotificationCreatedData{
			ID:       7,
			Session:  "dev",
			Window:   "build",
			Message:  "build failed",
			Category: "error",
			Pushed:   2,
		}

		before := time.Now().UTC()
		ev, err := New("notification-7", AggregateTypeNotification, TypeNotificationCreated, data)
		after := time.Now().UTC()

		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if _, err := uuid.Parse(ev.ID); err != nil {
			t.Errorf("IDがUUIDではない: %q", ev.ID)
		}
		if ev.AggregateID != "notification-7" {
			t.Errorf("AggregateID = %q, want %q", ev.AggregateID, "notification-7")
		}
		if ev.EventType != TypeNotificationCreated {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypeNotificationCreated)
		}
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		decoded, err := DecodeData[NotificationCreatedData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if *decoded != data {
			t.Errorf("Data = %+v, want %+v", *decoded, data)
		}
	})

	t.Run("シリアライズできないデータはエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := New("x", AggregateTypeNotification, TypeNotificationRead, make(chan int))
		if err == nil {
			t.Fatal("chanのシリアライズでエラーが返るべき")
		}
	})

	t.Run("毎回異なるIDが採番されること", func(t *testing.T) {
		t.Parallel()

		a, err := New("x", AggregateTypeSubscription, TypeSubscriptionAdded, SubscriptionData{Endpoint: "e"})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		b, err := New("x", AggregateTypeSubscription, TypeSubscriptionAdded, SubscriptionData{Endpoint: "e"})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if a.ID == b.ID {
			t.Error("IDが重複している")
		}
	})
}

// TestDecodeData は不正なデータのデシリアライズ失敗を検証する。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	ev := &Event{Data: []byte(`{"id":"not-a-number"}`)}
	if _, err := DecodeData[NotificationRefData](ev); err == nil {
		t.Fatal("型不一致でエラーが返るべき")
	}
}

// TestRoutingKey はイベント種別ごとのルーティングキーを検証する。
func TestRoutingKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  Type
		want string
	}{
		{TypeNotificationCreated, "notification.created"},
		{TypeNotificationRead, "notification.read"},
		{TypeNotificationDeleted, "notification.deleted"},
		{TypeNotificationsCleared, "notification.cleared"},
		{TypeSubscriptionAdded, "subscription.added"},
		{TypeSubscriptionPruned, "subscription.pruned"},
		{Type("Other"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			t.Parallel()
			if got := tt.typ.RoutingKey(); got != tt.want {
				t.Errorf("RoutingKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestEncodeDecode は配信用JSONの往復と不正入力を検証する。
func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	t.Run("エンコードしたイベントを復元できること", func(t *testing.T) {
		t.Parallel()

		ev, err := New("notification-3", AggregateTypeNotification, TypeNotificationRead, NotificationRefData{ID: 3})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		body, err := Encode(ev)
		if err != nil {
			t.Fatalf("Encode()でエラーが発生: %v", err)
		}
		got, err := Decode(body)
		if err != nil {
			t.Fatalf("Decode()でエラーが発生: %v", err)
		}
		if got.ID != ev.ID || got.EventType != TypeNotificationRead || !got.CreatedAt.Equal(ev.CreatedAt) {
			t.Errorf("Decode() = %+v, want %+v", got, ev)
		}
		ref, err := DecodeData[NotificationRefData](got)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if ref.ID != 3 {
			t.Errorf("ID = %d, want 3", ref.ID)
		}
	})

	for name, body := range map[string]string{
		"不正なJSON": "{",
		"IDがない":   `{"event_type":"NotificationRead"}`,
		"種類がない":   `{"id":"x"}`,
	} {
		t.Run(name+"はエラーになること", func(t *testing.T) {
			t.Parallel()
			if _, err := Decode([]byte(body)); err == nil {
				t.Error("エラーが返るべき")
			}
		})
	}
}

// TestNew_RequiresAggregateID は集約IDが空のイベントを拒否することを検証する。
func TestNew_RequiresAggregateID(t *testing.T) {
	t.Parallel()

	if _, err := New("", AggregateTypeNotification, TypeNotificationRead, nil); err == nil {
		t.Fatal("空のaggregateIDでエラーが返るべき")
	}
}
