package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/pkg/middleware"
)

// NewShellRouter はアプリケーションシェルをローカルで配信するルーターを返す。
// 静的アセットはHandleFetchを通し、サーバーに届かないときはキャッシュから返す。
// 横取りしないリクエスト（/api/ 配下やGET以外）はupstreamへそのまま中継する。
func (a *Agent) NewShellRouter(upstream *url.URL) *gin.Engine {
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		a.log.Warn("サーバーへの中継に失敗", zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"サーバーとの通信に失敗しました"}`))
	}

	router := gin.New()
	router.Use(middleware.Recovery(a.log))
	router.NoRoute(a.handleShell(proxy))
	return router
}

func (a *Agent) handleShell(proxy http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		asset, err := a.HandleFetch(c.Request.Context(), c.Request.Method, c.Request.URL.RequestURI())
		switch {
		case errors.Is(err, ErrNotIntercepted):
			proxy.ServeHTTP(c.Writer, c.Request)
			return
		case err != nil:
			a.log.Debug("アセットを返せませんでした", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "オフラインのためアセットを返せません"})
			return
		}

		contentType := asset.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Data(asset.Status, contentType, asset.Body)
	}
}

// shellShutdownTimeout は停止時に処理中のリクエストを待つ上限。
const shellShutdownTimeout = 5 * time.Second

// ServeShell はaddrでアプリケーションシェルを配信し、ctxがキャンセルされたら停止する。
func (a *Agent) ServeShell(ctx context.Context, addr string, upstream *url.URL) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.NewShellRouter(upstream),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("アプリケーションシェルを配信します", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("アプリケーションシェルの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shellShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
