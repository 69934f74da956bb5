// Package dispatch は新しい通知を登録済みの全購読へファンアウトする。
//
// 送信は購読ごとに独立して並行実行され、応答前に合流する。
// プッシュサービスが404/410を返した購読は即座に削除し、
// それ以外の失敗はログに残して購読を保持する。再送はしない。
package dispatch
