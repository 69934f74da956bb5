package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nao1215/pushrelay/pkg/migration"
)

const (
	// DriverSQLite はmodernc.org/sqliteドライバ名。
	DriverSQLite = "sqlite"
	// DriverPostgres はpgx標準ライブラリドライバ名。
	DriverPostgres = "pgx"
)

// timeLayout は日時の保存形式。固定長のため文字列比較で時刻順に並ぶ。
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

//go:embed migrations
var migrationsFS embed.FS

// Store は購読と通知の永続化を担う。
type Store struct {
	// db はデータベース接続。
	db *sql.DB
	// driver は使用中のドライバ名。
	driver string
	// log はロガー。
	log *zap.Logger
	// now は現在時刻の取得関数。テストで差し替える。
	now func() time.Time
}

// Open はデータベースに接続し、マイグレーションを適用したStoreを返す。
func Open(driver, dsn string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	s, err := New(db, driver, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New は既存の接続からStoreを生成し、スキーマを適用する。
func New(db *sql.DB, driver string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	opts := []migration.Option{migration.WithLogger(log)}
	dir := "migrations/sqlite"
	switch driver {
	case DriverSQLite:
		// SQLiteは書き込みが直列化されるため接続を1本に固定する。
		// :memory: の場合は接続ごとに別DBになるのを防ぐ意味もある。
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			return nil, fmt.Errorf("PRAGMAの設定に失敗: %w", err)
		}
	case DriverPostgres:
		dir = "migrations/postgres"
		opts = append(opts, migration.WithDollarPlaceholders())
	default:
		return nil, fmt.Errorf("未対応のドライバです: %s", driver)
	}

	if err := migration.Run(db, migrationsFS, dir, opts...); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return &Store{
		db:     db,
		driver: driver,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping はデータベースへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind は ? プレースホルダをドライバに合わせて書き換える。
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	return rebindDollar(query)
}

// rebindDollar は ? を $1, $2, ... に置換する。
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("日時の解析に失敗 (%q): %w", s, err)
	}
	return t, nil
}
