// Package domain はプッシュ中継システムのドメインモデルとエラー分類を提供する。
//
// 購読（Subscription）と通知（Notification）のレコード型、
// およびHTTP層・配信層が共通して判定に使うエラー型を定義する。
package domain
