package domain

import (
	"errors"
	"testing"
)

func TestSubscription_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sub       Subscription
		wantField string
	}{
		{name: "全項目ありなら成功すること", sub: Subscription{Endpoint: "https://push.example/1", Keys: Keys{P256dh: "p", Auth: "a"}}},
		{name: "endpointが空ならエラーになること", sub: Subscription{Keys: Keys{P256dh: "p", Auth: "a"}}, wantField: "endpoint"},
		{name: "p256dhが空ならエラーになること", sub: Subscription{Endpoint: "e", Keys: Keys{Auth: "a"}}, wantField: "keys.p256dh"},
		{name: "authが空ならエラーになること", sub: Subscription{Endpoint: "e", Keys: Keys{P256dh: "p"}}, wantField: "keys.auth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.sub.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate()でエラーが発生: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestCreateParams_Normalize(t *testing.T) {
	t.Parallel()

	t.Run("種別が空ならgeneralが補われること", func(t *testing.T) {
		t.Parallel()

		p, err := CreateParams{Message: "done"}.Normalize()
		if err != nil {
			t.Fatalf("Normalize()でエラーが発生: %v", err)
		}
		if p.Category != DefaultCategory {
			t.Errorf("Category = %q, want %q", p.Category, DefaultCategory)
		}
	})

	t.Run("messageが空ならValidationErrorになること", func(t *testing.T) {
		t.Parallel()

		_, err := CreateParams{Session: "s"}.Normalize()
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "message" {
			t.Errorf("Normalize() = %v, want message ValidationError", err)
		}
	})
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	for in, want := range map[int]int{-1: 50, 0: 50, 1: 1, 50: 50, 51: 50, 1000: 50} {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestUnreadCount(t *testing.T) {
	t.Parallel()

	list := []Notification{{ID: 1}, {ID: 2, Read: true}, {ID: 3}, {ID: 4, Read: true}}
	if got := UnreadCount(list); got != 2 {
		t.Errorf("UnreadCount() = %d, want 2", got)
	}
	if got := UnreadCount(nil); got != 0 {
		t.Errorf("UnreadCount(nil) = %d, want 0", got)
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		session, window, want string
	}{
		{"dev", "build", "Claude: build"},
		{"dev", "", "Claude: dev"},
		{"", "", "Claude: Notification"},
	}
	for _, tt := range tests {
		if got := Title(tt.session, tt.window); got != tt.want {
			t.Errorf("Title(%q, %q) = %q, want %q", tt.session, tt.window, got, tt.want)
		}
	}
}

func TestTerminalURL(t *testing.T) {
	t.Parallel()

	if got := TerminalURL("https://ttyd.example/", "my session"); got != "https://ttyd.example/?tmux_session=my+session" {
		t.Errorf("TerminalURL() = %q", got)
	}
	if got := TerminalURL("", "dev"); got != "" {
		t.Errorf("ベースURLなしのTerminalURL() = %q, want empty", got)
	}
	if got := TerminalURL("https://ttyd.example", ""); got != "" {
		t.Errorf("セッションなしのTerminalURL() = %q, want empty", got)
	}
}

func TestParsePushPayload(t *testing.T) {
	t.Parallel()

	t.Run("正しいメッセージを読み込めること", func(t *testing.T) {
		t.Parallel()

		p, err := ParsePushPayload([]byte(`{"title":"Claude: build","body":"failed","data":{"id":3,"window":"build","terminalUrl":"https://t/?tmux_session=dev"}}`))
		if err != nil {
			t.Fatalf("ParsePushPayload()でエラーが発生: %v", err)
		}
		if p.Data.ID != 3 || p.Body != "failed" || p.Data.TerminalURL == "" {
			t.Errorf("payload = %+v", p)
		}
	})

	t.Run("タイトルがなければ付帯情報から補われること", func(t *testing.T) {
		t.Parallel()

		p, err := ParsePushPayload([]byte(`{"body":"x","data":{"id":1,"session":"dev"}}`))
		if err != nil {
			t.Fatalf("ParsePushPayload()でエラーが発生: %v", err)
		}
		if p.Title != "Claude: dev" {
			t.Errorf("Title = %q, want %q", p.Title, "Claude: dev")
		}
	})

	t.Run("IDがないメッセージも読み込めること", func(t *testing.T) {
		t.Parallel()

		p, err := ParsePushPayload([]byte(`{"title":"t","body":"b","data":{}}`))
		if err != nil {
			t.Fatalf("ParsePushPayload()でエラーが発生: %v", err)
		}
		if p.Data.ID != 0 || p.Title != "t" || p.Body != "b" {
			t.Errorf("payload = %+v", p)
		}
	})

	for name, raw := range map[string]string{
		"空のメッセージ": "",
		"不正なJSON": "{not json",
	} {
		t.Run(name+"はエラーになること", func(t *testing.T) {
			t.Parallel()

			if _, err := ParsePushPayload([]byte(raw)); err == nil {
				t.Fatal("ParsePushPayload()がエラーを返すべきだが、nilが返った")
			}
		})
	}
}

func TestDeliveryErrorClassification(t *testing.T) {
	t.Parallel()

	gone := &DeliveryError{Endpoint: "e", StatusCode: 410, Permanent: true}
	busy := &DeliveryError{Endpoint: "e", StatusCode: 429}

	if !IsPermanentEndpoint(gone) || IsTransientDelivery(gone) {
		t.Error("410はエンドポイント消滅として分類されるべき")
	}
	if IsPermanentEndpoint(busy) || !IsTransientDelivery(busy) {
		t.Error("429は一時的な失敗として分類されるべき")
	}
	if IsPermanentEndpoint(errors.New("other")) || IsTransientDelivery(nil) {
		t.Error("DeliveryError以外はどちらにも分類されないべき")
	}
	if NewStorageError("op", nil) != nil {
		t.Error("NewStorageError(op, nil)はnilを返すべき")
	}
}
