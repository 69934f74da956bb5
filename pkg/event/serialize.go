package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New はuuidとUTCの発生時刻を付けてイベントを生成する。
func New(aggregateID string, aggregateType AggregateType, eventType Type, data any) (*Event, error) {
	if aggregateID == "" {
		return nil, errors.New("aggregateIDは必須です")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s のデータのシリアライズに失敗: %w", eventType, err)
	}
	return &Event{
		ID:            uuid.NewString(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Encode は配信用のJSONにする。
func Encode(e *Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("イベント %s のエンコードに失敗: %w", e.ID, err)
	}
	return body, nil
}

// Decode は配信されたJSONをイベントに戻す。
func Decode(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("イベントのデコードに失敗: %w", err)
	}
	if e.ID == "" || e.EventType == "" {
		return nil, errors.New("イベントのIDまたは種類がありません")
	}
	return &e, nil
}

// DecodeData はDataを指定の型に戻す。
func DecodeData[T any](e *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("%s のデータのデシリアライズに失敗: %w", e.EventType, err)
	}
	return &data, nil
}
