// Package server はpushrelayのHTTP APIを提供する。
//
// 購読登録、通知の投入と一覧、既読化、削除、ヘルスチェックを扱う。
// 通知投入時は保存後に全購読へ配信し、配信が終わってから応答する。
// 設定があればアプリケーションシェルの静的ファイルも配信する。
package server
