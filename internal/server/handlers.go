package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/domain"
	"github.com/nao1215/pushrelay/internal/events"
	"github.com/nao1215/pushrelay/pkg/event"
	"github.com/nao1215/pushrelay/pkg/metrics"
	"github.com/nao1215/pushrelay/pkg/middleware"
)

// subscribeRequest は購読登録リクエストのJSON構造。
type subscribeRequest struct {
	// Endpoint はプッシュサービスの購読先URL。
	Endpoint string `json:"endpoint"`
	// Keys は端末の暗号化鍵。
	Keys domain.Keys `json:"keys"`
}

// notifyRequest は通知投入リクエストのJSON構造。
type notifyRequest struct {
	// Session は発生元のセッション名。
	Session string `json:"session"`
	// Window は発生元のウィンドウ名。
	Window string `json:"window"`
	// Message は通知本文。必須。
	Message string `json:"message"`
	// Category は通知種別。省略時は "general"。
	Category string `json:"notification_type"`
}

// successResponse は成功時の共通レスポンス。
var successResponse = gin.H{"success": true}

// handleVAPIDPublicKey はクライアントが購読に使うVAPID公開鍵を返すハンドラ。
func (s *Server) handleVAPIDPublicKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"publicKey": s.vapidPublicKey})
	}
}

// handleSubscribe は購読を登録（同一エンドポイントなら鍵を更新）するハンドラ。
func (s *Server) handleSubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}

		if err := s.store.UpsertSubscription(c.Request.Context(), req.Endpoint, req.Keys); err != nil {
			s.writeError(c, err, "購読の登録に失敗しました")
			return
		}

		s.emitter.Emit(c.Request.Context(), req.Endpoint, event.AggregateTypeSubscription,
			event.TypeSubscriptionAdded, event.SubscriptionData{Endpoint: req.Endpoint})

		c.JSON(http.StatusOK, successResponse)
	}
}

// handleNotify は通知を保存して全購読へ配信するハンドラ。
// 配信の成否は応答に影響しない。pushedは配信を試みた購読数。
func (s *Server) handleNotify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}

		ctx := c.Request.Context()
		n, err := s.store.CreateNotification(ctx, domain.CreateParams{
			Session:  req.Session,
			Window:   req.Window,
			Message:  req.Message,
			Category: req.Category,
		})
		if err != nil {
			s.writeError(c, err, "通知の保存に失敗しました")
			return
		}
		metrics.NotificationsCreated.Inc()

		result := s.dispatcher.Dispatch(ctx, n)
		s.log.Info("通知を受け付けました",
			zap.Int64("id", n.ID),
			zap.String("producer", middleware.GetProducer(c)),
			zap.Int("pushed", result.Attempted),
		)

		s.emitter.Emit(ctx, events.NotificationAggregateID(n.ID), event.AggregateTypeNotification,
			event.TypeNotificationCreated, event.NotificationCreatedData{
				ID:       n.ID,
				Session:  n.Session,
				Window:   n.Window,
				Message:  n.Message,
				Category: n.Category,
				Pushed:   result.Attempted,
			})

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"id":      n.ID,
			"pushed":  result.Attempted,
		})
	}
}

// handleList は新しい順に通知一覧を返すハンドラ。
// limitクエリは1〜50に丸める。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := domain.MaxListLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				s.writeError(c, domain.NewValidationError("limit", "limitは整数で指定してください"), "")
				return
			}
			limit = n
		}

		notifications, err := s.store.ListNotifications(c.Request.Context(), limit)
		if err != nil {
			s.writeError(c, err, "通知一覧の取得に失敗しました")
			return
		}

		c.JSON(http.StatusOK, notifications)
	}
}

// handleMarkRead は通知を既読にするハンドラ。存在しないIDでも成功を返す。
func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.parseID(c)
		if !ok {
			return
		}

		if err := s.store.MarkRead(c.Request.Context(), id); err != nil {
			s.writeError(c, err, "通知の既読化に失敗しました")
			return
		}

		s.emitter.Emit(c.Request.Context(), events.NotificationAggregateID(id), event.AggregateTypeNotification,
			event.TypeNotificationRead, event.NotificationRefData{ID: id})

		c.JSON(http.StatusOK, successResponse)
	}
}

// handleDelete は通知を1件削除するハンドラ。存在しないIDでも成功を返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.parseID(c)
		if !ok {
			return
		}

		if err := s.store.DeleteNotification(c.Request.Context(), id); err != nil {
			s.writeError(c, err, "通知の削除に失敗しました")
			return
		}

		s.emitter.Emit(c.Request.Context(), events.NotificationAggregateID(id), event.AggregateTypeNotification,
			event.TypeNotificationDeleted, event.NotificationRefData{ID: id})

		c.JSON(http.StatusOK, successResponse)
	}
}

// handleClear は全通知を削除するハンドラ。
func (s *Server) handleClear() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.ClearNotifications(c.Request.Context()); err != nil {
			s.writeError(c, err, "通知の全削除に失敗しました")
			return
		}

		s.emitter.Emit(c.Request.Context(), "notifications", event.AggregateTypeNotification,
			event.TypeNotificationsCleared, struct{}{})

		c.JSON(http.StatusOK, successResponse)
	}
}

// handleHealth はヘルスチェックのハンドラ。データベースに届かない場合は503を返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := s.now()
		if err := s.store.Ping(c.Request.Context()); err != nil {
			s.log.Warn("ヘルスチェックでデータベースに接続できません", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "timestamp": now})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": now})
	}
}

// parseID はパスパラメータのIDを読み取る。不正なら400を書き込んでfalseを返す。
func (s *Server) parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(c, domain.NewValidationError("id", "idは正の整数で指定してください"), "")
		return 0, false
	}
	return id, true
}

// writeError はエラーの種類に応じたステータスでエラーレスポンスを書き込む。
// 入力不正は400、それ以外は500とし、内部エラーの詳細は返さない。
func (s *Server) writeError(c *gin.Context, err error, message string) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
		return
	}

	_ = c.Error(err)
	s.log.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}
