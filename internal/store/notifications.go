package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/domain"
)

// CreateNotification は通知を保存し、採番済みのレコードを返す。
func (s *Store) CreateNotification(ctx context.Context, params domain.CreateParams) (domain.Notification, error) {
	params, err := params.Normalize()
	if err != nil {
		return domain.Notification{}, err
	}

	n := domain.Notification{
		Session:   params.Session,
		Window:    params.Window,
		Message:   params.Message,
		Category:  params.Category,
		Timestamp: s.now(),
	}

	query := s.rebind(`
		INSERT INTO notifications (session_name, window_name, message, notification_type, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err = s.db.QueryRowContext(ctx, query,
		n.Session, n.Window, n.Message, n.Category, formatTime(n.Timestamp),
	).Scan(&n.ID)
	if err != nil {
		return domain.Notification{}, domain.NewStorageError("notification.create", err)
	}

	s.log.Info("通知を保存しました",
		zap.Int64("id", n.ID),
		zap.String("session", n.Session),
		zap.String("window", n.Window),
		zap.String("notification_type", n.Category),
	)
	return n, nil
}

// ListNotifications は新しい順に最大limit件の通知を返す。
// limitは1〜domain.MaxListLimitに丸められる。
func (s *Store) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	query := s.rebind(`
		SELECT id, session_name, window_name, message, notification_type, created_at, is_read
		FROM notifications
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)
	rows, err := s.db.QueryContext(ctx, query, domain.ClampLimit(limit))
	if err != nil {
		return nil, domain.NewStorageError("notification.list", err)
	}
	defer func() { _ = rows.Close() }()

	notifications := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n         domain.Notification
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.Session, &n.Window, &n.Message, &n.Category, &createdAt, &n.Read); err != nil {
			return nil, domain.NewStorageError("notification.list", err)
		}
		if n.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, domain.NewStorageError("notification.list", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("notification.list", err)
	}
	return notifications, nil
}

// MarkRead は通知を既読にする。既読済み・存在しないIDでも成功扱い。
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	query := s.rebind(`UPDATE notifications SET is_read = TRUE WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return domain.NewStorageError("notification.mark_read", err)
	}
	s.logIgnored(res, "notification.mark_read", id)
	return nil
}

// DeleteNotification は通知を削除する。存在しないIDでも成功扱い。
func (s *Store) DeleteNotification(ctx context.Context, id int64) error {
	query := s.rebind(`DELETE FROM notifications WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return domain.NewStorageError("notification.delete", err)
	}
	s.logIgnored(res, "notification.delete", id)
	return nil
}

// ClearNotifications は全通知を削除する。
func (s *Store) ClearNotifications(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return domain.NewStorageError("notification.clear", err)
	}
	return nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

// logIgnored は対象行が無かった操作をdebugで記録する。
func (s *Store) logIgnored(res rowsAffecter, op string, id int64) {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.log.Debug(domain.ErrNotFoundIgnored.Error(), zap.String("op", op), zap.Int64("id", id))
	}
}
