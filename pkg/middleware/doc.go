// Package middleware はpushrelayのHTTP APIで使用するGinミドルウェアを提供する。
//
// zapによるアクセスログとパニックリカバリ、CORS設定、
// 通知投入APIを保護するJWT認証を含む。
package middleware
