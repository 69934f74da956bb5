// Package migration はデータベースのマイグレーションを管理する。
// embed.FSからSQLファイルを読み込み、バージョン管理テーブルで適用状態を追跡する。
// SQLiteとPostgreSQLのプレースホルダ差異はOptionで吸収する。
package migration

import (
	"cmp"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Option はマイグレーション実行時の挙動を変更する。
type Option func(*runner)

// WithLogger は適用ログの出力先を指定する。
func WithLogger(log *zap.Logger) Option {
	return func(r *runner) { r.log = log }
}

// WithDollarPlaceholders はプレースホルダを $1 形式にする（PostgreSQL用）。
func WithDollarPlaceholders() Option {
	return func(r *runner) {
		r.bind = func(n int) string { return "$" + strconv.Itoa(n) }
	}
}

type runner struct {
	db   *sql.DB
	log  *zap.Logger
	bind func(n int) string
}

// Run はembedされたマイグレーションファイルを順序通りに適用する。
// 未適用のマイグレーションのみ実行し、適用済みのものはスキップする。
// ファイル名形式: 000001_description.up.sql
func Run(db *sql.DB, fsys fs.FS, dir string, opts ...Option) error {
	r := &runner{db: db, log: zap.NewNop(), bind: func(int) string { return "?" }}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("マイグレーション管理テーブルの作成に失敗: %w", err)
	}

	applied, err := r.getAppliedVersions()
	if err != nil {
		return fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}

	migrations, err := collectMigrations(fsys, dir)
	if err != nil {
		return fmt.Errorf("マイグレーションファイルの収集に失敗: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		if err := r.applyMigration(fsys, m); err != nil {
			return fmt.Errorf("マイグレーション %06d の適用に失敗: %w", m.version, err)
		}
		r.log.Info("マイグレーションを適用しました",
			zap.Int("version", m.version),
			zap.String("name", m.name),
		)
	}

	return nil
}

type migrationFile struct {
	version int
	name    string
	path    string
}

// ensureMigrationsTable はバージョン管理テーブルを作成する。
// applied_at はドライバ間で型を揃えるためTEXTで保持する。
func (r *runner) ensureMigrationsTable() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

// getAppliedVersions は適用済みのマイグレーションバージョンを取得する。
func (r *runner) getAppliedVersions() (map[int]bool, error) {
	rows, err := r.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// collectMigrations はdir直下の *.up.sql をバージョン順に並べて返す。
// 名前の規則に合わないファイルは無視し、同じバージョンが2つあればエラーにする。
func collectMigrations(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string)
	var migrations []migrationFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m, ok := parseFileName(entry.Name())
		if !ok {
			continue
		}
		if prev, dup := seen[m.version]; dup {
			return nil, fmt.Errorf("バージョン %06d が重複しています: %s, %s", m.version, prev, entry.Name())
		}
		seen[m.version] = entry.Name()
		m.path = path.Join(dir, entry.Name())
		migrations = append(migrations, m)
	}

	slices.SortFunc(migrations, func(a, b migrationFile) int {
		return cmp.Compare(a.version, b.version)
	})
	return migrations, nil
}

// parseFileName は "000001_description.up.sql" からバージョンと名前を取り出す。
func parseFileName(name string) (migrationFile, bool) {
	base, ok := strings.CutSuffix(name, ".up.sql")
	if !ok {
		return migrationFile{}, false
	}
	num, desc, ok := strings.Cut(base, "_")
	if !ok {
		return migrationFile{}, false
	}
	version, err := strconv.Atoi(num)
	if err != nil || version <= 0 {
		return migrationFile{}, false
	}
	return migrationFile{version: version, name: desc}, true
}

// applyMigration は1つのマイグレーションをトランザクション内で適用する。
func (r *runner) applyMigration(fsys fs.FS, m migrationFile) error {
	content, err := fs.ReadFile(fsys, m.path)
	if err != nil {
		return fmt.Errorf("ファイル読み込みに失敗: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("SQL実行に失敗: %w", err)
	}

	query := fmt.Sprintf("INSERT INTO schema_migrations (version, applied_at) VALUES (%s, %s)", r.bind(1), r.bind(2))
	if _, err := tx.Exec(query, m.version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("バージョン記録に失敗: %w", err)
	}

	return tx.Commit()
}
