package payment

import (
	"encoding/json"
	"fmt"
	"time"
)

// Webhook イベント種別
// この2種別のみが決済確定の対象。未知の種別はエラーではなく単に無視する
// （プロセッサ側の種別追加で Webhook が壊れないようにするため）
const (
	EventTypeCheckoutCompleted = "checkout.session.completed"
	EventTypePaymentSucceeded  = "payment_intent.succeeded"
)

// Event は外部決済プロセッサから配送される Webhook イベントを表す
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

// EventData は Webhook イベントのペイロード部
type EventData struct {
	Object EventObject `json:"object"`
}

// EventObject はチェックアウトセッションまたは決済インテントのオブジェクト
// どちらの形でもメタデータに予約IDが埋め込まれている想定
type EventObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent,omitempty"`
	AmountTotal   int               `json:"amount_total,omitempty"`
	Amount        int               `json:"amount,omitempty"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// MetadataBookingKey はメタデータに埋め込む予約IDのキー
const MetadataBookingKey = "booking_id"

// ParseEvent は検証済みの生ペイロードからイベントを復元する
// 署名検証前のペイロードに対して呼び出してはならない
func ParseEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("Webhookペイロードの解析に失敗: %w", err)
	}
	return &ev, nil
}

// BookingID はメタデータから予約IDを取り出す。存在しない場合は空文字
func (e *Event) BookingID() string {
	return e.Data.Object.Metadata[MetadataBookingKey]
}

// Amount はイベント種別に応じた決済金額を返す
// チェックアウトセッションは amount_total、決済インテントは amount を持つ
func (e *Event) Amount() int {
	if e.Data.Object.AmountTotal != 0 {
		return e.Data.Object.AmountTotal
	}
	return e.Data.Object.Amount
}

// OccurredAt はイベント発生時刻を返す。欠落時はゼロ値
func (e *Event) OccurredAt() time.Time {
	if e.Created == 0 {
		return time.Time{}
	}
	return time.Unix(e.Created, 0)
}
