package payment

import (
	"context"
	"time"
)

// AnomalyKind は照合異常の種別を表す
type AnomalyKind string

const (
	// AnomalyFallbackMatched は金額・時刻ヒューリスティックで照合した決済
	AnomalyFallbackMatched AnomalyKind = "fallback_matched"
	// AnomalyUnmatched は照合先が見つからなかった決済イベント
	AnomalyUnmatched AnomalyKind = "unmatched"
	// AnomalyAmbiguous は候補が複数あり照合を保留した決済イベント
	AnomalyAmbiguous AnomalyKind = "ambiguous"
	// AnomalyUnknownBooking はメタデータの予約IDが存在しなかったイベント
	AnomalyUnknownBooking AnomalyKind = "unknown_booking"
	// AnomalyStaleBooking は長時間決済待ちのまま放置されている予約
	AnomalyStaleBooking AnomalyKind = "stale_booking"
)

// Anomaly は人手レビュー対象の照合異常記録を表す
// Webhook 呼び出し自体は常に正常応答し、異常はこの記録として残す
type Anomaly struct {
	ID         string
	Kind       AnomalyKind
	BookingID  *string
	EventType  string
	ExternalID string
	Amount     int
	Currency   string
	Detail     string
	CreatedAt  time.Time
}

// AnomalyRepository は照合異常記録のインターフェース
type AnomalyRepository interface {
	// Create は異常記録を作成する
	Create(ctx context.Context, a *Anomaly) error

	// List は異常記録を新しい順に取得する
	List(ctx context.Context, limit, offset int) ([]*Anomaly, error)
}
