package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/config"
	"github.com/nao1215/pushrelay/internal/dispatch"
	"github.com/nao1215/pushrelay/internal/domain"
	"github.com/nao1215/pushrelay/internal/events"
	"github.com/nao1215/pushrelay/pkg/middleware"
)

// shutdownTimeout は停止時に処理中リクエストを待つ最大時間。
const shutdownTimeout = 30 * time.Second

// Store はHTTP APIが使う永続化操作。
type Store interface {
	UpsertSubscription(ctx context.Context, endpoint string, keys domain.Keys) error
	CreateNotification(ctx context.Context, params domain.CreateParams) (domain.Notification, error)
	ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	DeleteNotification(ctx context.Context, id int64) error
	ClearNotifications(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Dispatcher は保存済みの通知を全購読へ配信する。
type Dispatcher interface {
	Dispatch(ctx context.Context, n domain.Notification) dispatch.Result
}

// Deps はServerが依存するコンポーネント。
type Deps struct {
	// Store は購読と通知の永続化。
	Store Store
	// Dispatcher はプッシュ配信。
	Dispatcher Dispatcher
	// Emitter はライフサイクルイベントの配信。nilなら配信しない。
	Emitter *events.Emitter
	// VAPIDPublicKey はクライアントに渡す公開鍵。
	VAPIDPublicKey string
	// Log はロガー。
	Log *zap.Logger
}

// Server はpushrelayのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// publicDir は静的ファイルの配信元。空なら配信しない。
	publicDir string
	// store は購読と通知の永続化。
	store Store
	// dispatcher はプッシュ配信。
	dispatcher Dispatcher
	// emitter はライフサイクルイベントの配信。
	emitter *events.Emitter
	// vapidPublicKey はVAPID公開鍵。
	vapidPublicKey string
	// log はロガー。
	log *zap.Logger
	// now は現在時刻の取得関数。
	now func() time.Time
}

// New は新しいHTTPサーバーを生成する。
func New(cfg *config.Config, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	emitter := deps.Emitter
	if emitter == nil {
		emitter = events.NewEmitter(nil, log)
	}

	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	}

	s := &Server{
		router:         router,
		port:           cfg.Server.Port,
		publicDir:      cfg.Server.PublicDir,
		store:          deps.Store,
		dispatcher:     deps.Dispatcher,
		emitter:        emitter,
		vapidPublicKey: deps.VAPIDPublicKey,
		log:            log,
		now:            func() time.Time { return time.Now().UTC() },
	}
	s.setupRoutes(cfg.Auth.JWTSecret)

	return s
}

// Handler はルーターをhttp.Handlerとして返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされたら処理中のリクエストを待って停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTPサーバーを起動します", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("HTTPサーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(jwtSecret string) {
	api := s.router.Group("/api")
	{
		api.GET("/vapid-public-key", s.handleVAPIDPublicKey())
		api.POST("/subscribe", s.handleSubscribe())
		// 通知投入はシークレット設定時のみトークンを要求する
		api.POST("/notify", middleware.ProducerAuth(jwtSecret), s.handleNotify())

		notifications := api.Group("/notifications")
		{
			notifications.GET("", s.handleList())
			notifications.PATCH("/:id/read", s.handleMarkRead())
			notifications.DELETE("/:id", s.handleDelete())
			notifications.DELETE("", s.handleClear())
		}

		api.GET("/health", s.handleHealth())
		api.HEAD("/health", s.handleHealth())
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.NoRoute(s.handleNoRoute())
}
