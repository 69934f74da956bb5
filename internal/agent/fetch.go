package agent

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// ErrNotIntercepted はエージェントが扱わないリクエストであることを表す。
// 呼び出し側はそのままネットワークへ送る。
var ErrNotIntercepted = errors.New("エージェントの対象外のリクエストです")

// HandleFetch は同一オリジンの静的アセット取得を横取りする。
// ネットワークを優先し、200の応答はキャッシュに保存する。
// ネットワークに失敗した場合はキャッシュから返す。
// GET以外、別オリジン、/api/ 配下は ErrNotIntercepted を返し、キャッシュは使わない。
func (a *Agent) HandleFetch(ctx context.Context, method, rawURL string) (*Asset, error) {
	path, ok := a.interceptable(method, rawURL)
	if !ok {
		return nil, ErrNotIntercepted
	}

	asset, err := a.network.Fetch(ctx, path)
	if err == nil {
		if asset.ok() {
			if perr := a.cache.Put(ctx, CacheName, path, asset); perr != nil {
				a.log.Debug("アセットのキャッシュ保存に失敗", zap.String("path", path), zap.Error(perr))
			}
		}
		return asset, nil
	}

	cached, found, cerr := a.cache.Match(ctx, CacheName, path)
	if cerr != nil || !found {
		return nil, err
	}
	a.log.Debug("オフラインのためキャッシュから返しました", zap.String("path", path))
	return cached, nil
}

// interceptable は横取り対象ならキャッシュキーとなるパスを返す。
func (a *Agent) interceptable(method, rawURL string) (string, bool) {
	if method != http.MethodGet {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if u.IsAbs() {
		scope, err := url.Parse(a.cfg.Scope)
		if err != nil || scope.Scheme != u.Scheme || scope.Host != u.Host {
			return "", false
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if strings.HasPrefix(path, "/api/") || path == "/api" {
		return "", false
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, true
}
