// Package agent は端末側の通知エージェントを実装する。
//
// エージェントはプラットフォームから非同期に呼ばれる独立したハンドラの集まりで、
// プッシュ受信、通知表示、クリック/クローズへの反応、バッジ同期、
// 静的アセットのオフラインキャッシュを担う。
// 各ハンドラは渡されたcontextの範囲内で、非同期処理が終わるまで戻らない。
// 既読状態の正はサーバーにあり、エージェント自身は永続状態を持たない。
package agent
