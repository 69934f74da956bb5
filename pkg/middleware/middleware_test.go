package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// doRequest はルーターにリクエストを送り、レスポンスを返す。
func doRequest(router *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	t.Run("パニックが発生した場合500が返りエラーログが出ること", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zap.ErrorLevel)
		router := gin.New()
		router.Use(Recovery(zap.New(core)))
		router.GET("/panic", func(_ *gin.Context) {
			panic("テスト用パニック")
		})

		w := doRequest(router, http.MethodGet, "/panic", nil)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["error"] != "内部サーバーエラーが発生しました" {
			t.Errorf("error = %q, want %q", body["error"], "内部サーバーエラーが発生しました")
		}
		if logs.Len() != 1 {
			t.Fatalf("ログ件数 = %d, want 1", logs.Len())
		}
		if got := logs.All()[0].ContextMap()["path"]; got != "/panic" {
			t.Errorf("path = %v, want /panic", got)
		}
	})

	t.Run("パニックが発生しない場合は正常にレスポンスが返ること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery(zap.NewNop()))
		router.GET("/ok", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		w := doRequest(router, http.MethodGet, "/ok", nil)
		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})
}

func TestLogger(t *testing.T) {
	t.Parallel()

	t.Run("ステータスに応じたレベルでアクセスログが出ること", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zap.DebugLevel)
		router := gin.New()
		router.Use(Logger(zap.New(core)))
		router.GET("/api/notifications/:id", func(c *gin.Context) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad"})
		})
		router.GET("/api/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		doRequest(router, http.MethodGet, "/api/notifications/abc", nil)
		doRequest(router, http.MethodGet, "/api/health", nil)

		entries := logs.All()
		if len(entries) != 2 {
			t.Fatalf("ログ件数 = %d, want 2", len(entries))
		}
		if entries[0].Level != zap.WarnLevel {
			t.Errorf("400のログレベル = %v, want warn", entries[0].Level)
		}
		if entries[1].Level != zap.InfoLevel {
			t.Errorf("200のログレベル = %v, want info", entries[1].Level)
		}
		if got := entries[0].ContextMap()["status"]; got != int64(http.StatusBadRequest) {
			t.Errorf("status = %v, want 400", got)
		}
	})
}

func TestCORS(t *testing.T) {
	t.Parallel()

	newRouter := func(origins []string) *gin.Engine {
		router := gin.New()
		router.Use(CORS(origins))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	t.Run("許可されたオリジンにCORSヘッダーが設定されPATCHが許可されること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(newRouter([]string{"http://localhost:3000", "https://example.com"}),
			http.MethodGet, "/test", map[string]string{"Origin": "https://example.com"})

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://example.com")
		}
		if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PATCH, DELETE, OPTIONS" {
			t.Errorf("Access-Control-Allow-Methods = %q", got)
		}
	})

	t.Run("許可されていないオリジンにCORSヘッダーが設定されないこと", func(t *testing.T) {
		t.Parallel()

		w := doRequest(newRouter([]string{"http://localhost:3000"}),
			http.MethodGet, "/test", map[string]string{"Origin": "https://evil.com"})

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty string", got)
		}
	})

	t.Run("ワイルドカードで任意のオリジンが許可されること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(newRouter([]string{"*"}),
			http.MethodGet, "/test", map[string]string{"Origin": "https://any.example"})

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://any.example" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://any.example")
		}
	})

	t.Run("OPTIONSリクエストで204が返りハンドラーが呼ばれないこと", func(t *testing.T) {
		t.Parallel()

		handlerCalled := false
		router := gin.New()
		router.Use(CORS([]string{"http://localhost:3000"}))
		router.OPTIONS("/test", func(c *gin.Context) {
			handlerCalled = true
			c.Status(http.StatusOK)
		})

		w := doRequest(router, http.MethodOptions, "/test", map[string]string{"Origin": "http://localhost:3000"})

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if handlerCalled {
			t.Error("OPTIONSリクエストでハンドラーが呼ばれるべきではない")
		}
	})

	t.Run("許可されていないオリジンのプリフライトは403になること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(newRouter([]string{"http://localhost:3000/"}),
			http.MethodOptions, "/test", map[string]string{"Origin": "https://evil.com"})

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("末尾のスラッシュ付きで設定したオリジンも許可されること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(newRouter([]string{"http://localhost:3000/"}),
			http.MethodGet, "/test", map[string]string{"Origin": "http://localhost:3000"})

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
		}
		if got := w.Header().Get("Vary"); got != "Origin" {
			t.Errorf("Vary = %q, want %q", got, "Origin")
		}
	})
}
