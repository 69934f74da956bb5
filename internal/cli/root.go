// Package cli はpushrelayコマンドのサブコマンドを定義する。
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/config"
	"github.com/nao1215/pushrelay/pkg/httpclient"
	"github.com/nao1215/pushrelay/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
)

// defaultConfigPath は --config 未指定時に読む設定ファイル。
const defaultConfigPath = "pushrelay.yaml"

// globalOptions は全サブコマンド共通のフラグ。
type globalOptions struct {
	// configPath はサーバー側の設定ファイル。
	configPath string
	// serverURL はクライアント側コマンドの接続先。
	serverURL string
	// token は POST /api/notify 用のBearerトークン。
	token string
	// logLevel はクライアント側コマンドのログレベル。
	logLevel string
}

// client はクライアント側コマンド用のHTTPクライアントを返す。
func (o *globalOptions) client(opts ...httpclient.Option) *httpclient.Client {
	if o.token != "" {
		opts = append(opts, httpclient.WithBearerToken(o.token))
	}
	return httpclient.New(o.serverURL, opts...)
}

// logger はクライアント側コマンド用のロガーを返す。
func (o *globalOptions) logger() (*zap.Logger, error) {
	return logger.New(o.logLevel)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "pushrelay",
		Short:         "Relay agent notifications to subscribed devices via Web Push",
		Long:          "pushrelay stores notifications from coding agents and fans them out to every subscribed browser or device using Web Push.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath := os.Getenv("PUSHRELAY_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", configPath, "Server config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.serverURL, "url", config.ServerURL(), "Server URL for client commands (PUSHRELAY_URL)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("PUSHRELAY_TOKEN"), "Bearer token for POST /api/notify (PUSHRELAY_TOKEN)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level for client commands")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSendCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newEventsCmd(opts))
	cmd.AddCommand(newAgentCmd(opts))
	cmd.AddCommand(newVAPIDCmd(opts))
	cmd.AddCommand(newTokenCmd(opts))
	return cmd
}

// NewRootCmdForTest はテスト用にルートコマンドを返す。
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute はルートコマンドを実行する。
func Execute() error {
	return newRootCmd().Execute()
}
