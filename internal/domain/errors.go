package domain

import (
	"errors"
	"fmt"
)

// ErrNotFoundIgnored は存在しないIDへの操作を表す。
// 冪等な操作では成功として扱われ、呼び出し元には返さない。
var ErrNotFoundIgnored = errors.New("対象が存在しないため操作を無視しました")

// ValidationError は必須項目の欠落など入力不正を表す。HTTPでは400になる。
type ValidationError struct {
	// Field は不正だった項目名。
	Field string
	// Message は利用者向けのメッセージ。
	Message string
}

// NewValidationError はValidationErrorを生成する。
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("入力が不正です (%s): %s", e.Field, e.Message)
}

// StorageError は永続化層の失敗を表す。HTTPでは500になり、操作は部分適用されない。
type StorageError struct {
	// Op は失敗した操作名。
	Op string
	// Err は元のエラー。
	Err error
}

// NewStorageError はStorageErrorを生成する。errがnilの場合はnilを返す。
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ストレージ操作 %s に失敗: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DeliveryError はプッシュ送信1件の失敗を表す。
// Permanentがtrueならエンドポイントは消滅済み（PermanentEndpointError）、
// falseなら一時的な失敗（TransientDeliveryError）として扱う。
type DeliveryError struct {
	// Endpoint は送信先の購読URL。
	Endpoint string
	// StatusCode はプッシュサービスの応答コード。通信自体が失敗した場合は0。
	StatusCode int
	// Permanent はエンドポイントが恒久的に無効かどうか。
	Permanent bool
	// Err は元のエラー。
	Err error
}

func (e *DeliveryError) Error() string {
	kind := "一時的な配信失敗"
	if e.Permanent {
		kind = "エンドポイント消滅"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: status=%d: %v", kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: status=%d", kind, e.StatusCode)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsPermanentEndpoint はerrがエンドポイント消滅を示すかを判定する。
func IsPermanentEndpoint(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent
}

// IsTransientDelivery はerrが一時的な配信失敗かを判定する。
func IsTransientDelivery(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && !de.Permanent
}
