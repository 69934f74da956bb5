// Package store は購読レジストリと通知ストアの永続化を提供する。
//
// database/sql の上に構築し、既定ではmodernc.org/sqlite、設定によっては
// pgx経由のPostgreSQLを使う。各操作は単一のSQL文で完結し、
// 複数のAPI呼び出しにまたがるトランザクションは持たない。
package store
