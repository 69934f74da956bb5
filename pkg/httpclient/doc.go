// Package httpclient はpushrelayサーバーのJSON APIを呼び出すHTTPクライアントを提供する。
//
// 通知投入フック、デスクトップエージェント、一覧表示コマンドが共通して使用する。
// 2xx以外の応答は *HTTPError として返し、IsStatus でステータスを判定できる。
package httpclient
