package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/domain"
)

// UpsertSubscription は購読を登録する。同じendpointが既にあれば鍵を置き換える。
func (s *Store) UpsertSubscription(ctx context.Context, endpoint string, keys domain.Keys) error {
	sub := domain.Subscription{Endpoint: endpoint, Keys: keys}
	if err := sub.Validate(); err != nil {
		return err
	}

	query := s.rebind(`
		INSERT INTO subscriptions (endpoint, keys_p256dh, keys_auth, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			keys_p256dh = excluded.keys_p256dh,
			keys_auth = excluded.keys_auth,
			created_at = excluded.created_at
	`)
	if _, err := s.db.ExecContext(ctx, query, endpoint, keys.P256dh, keys.Auth, formatTime(s.now())); err != nil {
		return domain.NewStorageError("subscription.upsert", err)
	}

	s.log.Debug("購読を登録しました", zap.String("endpoint", endpoint))
	return nil
}

// DeleteSubscription は購読を削除する。存在しないendpointでもエラーにしない。
func (s *Store) DeleteSubscription(ctx context.Context, endpoint string) error {
	query := s.rebind(`DELETE FROM subscriptions WHERE endpoint = ?`)
	if _, err := s.db.ExecContext(ctx, query, endpoint); err != nil {
		return domain.NewStorageError("subscription.delete", err)
	}
	return nil
}

// ListSubscriptions は全購読を返す。順序は保証しない。
func (s *Store) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT endpoint, keys_p256dh, keys_auth, created_at FROM subscriptions`)
	if err != nil {
		return nil, domain.NewStorageError("subscription.list", err)
	}
	defer func() { _ = rows.Close() }()

	subs := make([]domain.Subscription, 0)
	for rows.Next() {
		var (
			sub       domain.Subscription
			createdAt string
		)
		if err := rows.Scan(&sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth, &createdAt); err != nil {
			return nil, domain.NewStorageError("subscription.list", err)
		}
		if sub.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, domain.NewStorageError("subscription.list", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("subscription.list", err)
	}
	return subs, nil
}
