// Package config はサーバーとクライアントの設定を読み込む。
//
// 既定値 → YAMLファイル → 環境変数 の順に上書きし、最後に検証する。
// YAMLファイルが存在しない場合は既定値のまま扱う。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はリッスンポート。
	Port string `yaml:"port"`
	// PublicDir はアプリケーションシェルの静的ファイル置き場。空なら配信しない。
	PublicDir string `yaml:"public_dir"`
	// CORSOrigins はクロスオリジンを許可するオリジン。
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig は永続化先の設定。
type DatabaseConfig struct {
	// Driver は "sqlite" または "pgx"。
	Driver string `yaml:"driver"`
	// DSN は接続文字列。SQLiteではファイルパス。
	DSN string `yaml:"dsn"`
}

// PushConfig はWeb Push送信の設定。
type PushConfig struct {
	// VAPIDFile はVAPID鍵ペアの保存先。
	VAPIDFile string `yaml:"vapid_file"`
	// Subject はVAPIDのsubject（mailto: またはhttps:）。
	Subject string `yaml:"subject"`
	// TTLSeconds はプッシュサービスでの保持秒数。
	TTLSeconds int `yaml:"ttl_seconds"`
	// Urgency はプッシュの緊急度（very-low, low, normal, high）。
	Urgency string `yaml:"urgency"`
	// Concurrency はファンアウト時の同時送信数。
	Concurrency int `yaml:"concurrency"`
	// TimeoutSeconds は1送信あたりのタイムアウト秒数。
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout は1送信あたりのタイムアウトを返す。
func (p PushConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// AuthConfig は通知投入APIの認証設定。
type AuthConfig struct {
	// JWTSecret が設定されている場合、POST /api/notify にBearerトークンを要求する。
	JWTSecret string `yaml:"jwt_secret"`
}

// EventsConfig はライフサイクルイベントの外部配信設定。
type EventsConfig struct {
	// RedisAddr はRedisのアドレス。空なら配信しない。
	RedisAddr string `yaml:"redis_addr"`
	// RedisChannel はPUBLISH先のチャンネル。
	RedisChannel string `yaml:"redis_channel"`
	// AMQPURL はRabbitMQの接続URL。空なら配信しない。
	AMQPURL string `yaml:"amqp_url"`
	// AMQPExchange はtopic exchange名。
	AMQPExchange string `yaml:"amqp_exchange"`
}

// TerminalConfig はターミナル連携の設定。
type TerminalConfig struct {
	// BaseURL はセッション名からターミナルURLを組み立てる際のベースURL。
	BaseURL string `yaml:"base_url"`
}

// LogConfig はログ設定。
type LogConfig struct {
	// Level はログレベル。
	Level string `yaml:"level"`
}

// Config は全体の設定。
type Config struct {
	// DataDir は鍵やSQLiteファイルの保存先ディレクトリ。
	DataDir  string         `yaml:"data_dir"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Push     PushConfig     `yaml:"push"`
	Auth     AuthConfig     `yaml:"auth"`
	Events   EventsConfig   `yaml:"events"`
	Terminal TerminalConfig `yaml:"terminal"`
	Log      LogConfig      `yaml:"log"`
}

// Default は既定値の設定を返す。
func Default() *Config {
	return &Config{
		DataDir: "data",
		Server: ServerConfig{
			Port: "3000",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Push: PushConfig{
			Subject:        "mailto:notifications@pushrelay.local",
			TTLSeconds:     86400,
			Urgency:        "normal",
			Concurrency:    8,
			TimeoutSeconds: 10,
		},
		Events: EventsConfig{
			RedisChannel: "pushrelay.events",
			AMQPExchange: "pushrelay.events",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load は設定を読み込む。pathが空またはファイルが存在しない場合は既定値を使う。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%s の解析に失敗: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("%s の読み込みに失敗: %w", path, err)
		}
	}

	overrideFromEnv(cfg)
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overrideFromEnv は環境変数で設定を上書きする（優先度最高）。
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("PUSHRELAY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PUSHRELAY_PUBLIC_DIR"); v != "" {
		cfg.Server.PublicDir = v
	}
	if v := os.Getenv("PUSHRELAY_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("PUSHRELAY_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("PUSHRELAY_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("PUSHRELAY_VAPID_SUBJECT"); v != "" {
		cfg.Push.Subject = v
	}
	if v := os.Getenv("PUSHRELAY_PUSH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Push.Concurrency = n
		}
	}
	if v := os.Getenv("PUSHRELAY_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("PUSHRELAY_REDIS_ADDR"); v != "" {
		cfg.Events.RedisAddr = v
	}
	if v := os.Getenv("PUSHRELAY_AMQP_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}
	if v := os.Getenv("PUSHRELAY_TERMINAL_URL"); v != "" {
		cfg.Terminal.BaseURL = v
	}
	if v := os.Getenv("PUSHRELAY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// fillDerived はDataDirから導出されるパスを補完する。
func (c *Config) fillDerived() {
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = filepath.Join(c.DataDir, "notifications.db")
	}
	if c.Push.VAPIDFile == "" {
		c.Push.VAPIDFile = filepath.Join(c.DataDir, "vapid-keys.json")
	}
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.portは必須です"))
	}
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		errs = append(errs, fmt.Errorf("database.driverが不正です: %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsnは必須です"))
	}
	if !strings.HasPrefix(c.Push.Subject, "mailto:") && !strings.HasPrefix(c.Push.Subject, "https://") {
		errs = append(errs, fmt.Errorf("push.subjectはmailto:かhttps://で始まる必要があります: %q", c.Push.Subject))
	}
	switch c.Push.Urgency {
	case "", "very-low", "low", "normal", "high":
	default:
		errs = append(errs, fmt.Errorf("push.urgencyが不正です: %q", c.Push.Urgency))
	}
	if c.Push.Concurrency <= 0 {
		errs = append(errs, errors.New("push.concurrencyは1以上である必要があります"))
	}
	if c.Push.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("push.timeout_secondsは1以上である必要があります"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("設定が不正です: %w", errors.Join(errs...))
	}
	return nil
}

// ServerURL はクライアント側コマンドが接続するサーバーURLを環境変数から返す。
func ServerURL() string {
	if v := os.Getenv("PUSHRELAY_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	if v := os.Getenv("CLAUDE_NOTIFY_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
