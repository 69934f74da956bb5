package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/nao1215/pushrelay/internal/domain"
	"github.com/nao1215/pushrelay/pkg/httpclient"
)

// API はエージェントが使うサーバーAPI。
type API interface {
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id int64) error
}

// Network は静的アセットをネットワークから取得する。
type Network interface {
	Fetch(ctx context.Context, path string) (*Asset, error)
}

// HTTPAPI はpushrelayサーバーへのHTTP実装。APIとNetworkを兼ねる。
type HTTPAPI struct {
	client *httpclient.Client
}

// NewHTTPAPI はHTTPAPIを生成する。
func NewHTTPAPI(client *httpclient.Client) *HTTPAPI {
	return &HTTPAPI{client: client}
}

// ListNotifications は通知一覧を取得する。
func (a *HTTPAPI) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	var list []domain.Notification
	if err := a.client.GetJSON(ctx, "/api/notifications", &list); err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	return list, nil
}

// MarkRead は通知を既読にする。
func (a *HTTPAPI) MarkRead(ctx context.Context, id int64) error {
	if err := a.client.PatchJSON(ctx, fmt.Sprintf("/api/notifications/%d/read", id), nil, nil); err != nil {
		return fmt.Errorf("通知 %d の既読化に失敗: %w", id, err)
	}
	return nil
}

// Fetch は静的アセットを取得する。ステータスに関わらず応答をAssetとして返す。
func (a *HTTPAPI) Fetch(ctx context.Context, path string) (*Asset, error) {
	resp, err := a.client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s の読み込みに失敗: %w", path, err)
	}
	return &Asset{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// ok はアセットがキャッシュ対象の応答かを返す。
func (a *Asset) ok() bool {
	return a != nil && a.Status == http.StatusOK
}
