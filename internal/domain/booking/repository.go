package booking

import (
	"context"
	"time"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, b *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByGuestUserID はユーザーIDから予約一覧を取得する（新しい順）
	GetByGuestUserID(ctx context.Context, guestUserID string, limit, offset int) ([]*Booking, error)

	// GetByHotelID はホテルIDから予約一覧を取得する（新しい順）
	GetByHotelID(ctx context.Context, hotelID string, limit, offset int) ([]*Booking, error)

	// HasOverlap は指定客室・期間に重なる非キャンセル予約が存在するかを返す
	// tx が nil の場合はトランザクション外のスナップショット読み取りとなる
	HasOverlap(ctx context.Context, tx transaction.Tx, roomID string, checkIn, checkOut time.Time) (bool, error)

	// MarkPaid は決済状態を awaiting_payment から paid へ compare-and-set で遷移する
	// 遷移が行われた場合のみ true を返す
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)

	// MarkCancelled は決済状態を awaiting_payment から cancelled へ compare-and-set で遷移する
	MarkCancelled(ctx context.Context, id string) (bool, error)

	// SetExternalSessionID は外部決済セッションIDを監査用に記録する
	SetExternalSessionID(ctx context.Context, id, externalSessionID string) error

	// FindAwaitingByAmount は金額・通貨が一致し指定期間内に作成された決済待ち予約を返す
	FindAwaitingByAmount(ctx context.Context, amount int, currency string, from, to time.Time) ([]*Booking, error)

	// ListUnflaggedStaleAwaiting は一定時間を超えて決済待ちのまま、
	// かつ未フラグの予約を返す（監視ワーカー用）
	ListUnflaggedStaleAwaiting(ctx context.Context, olderThan time.Duration) ([]*Booking, error)

	// CountByStatus は決済状態ごとの予約数を返す
	CountByStatus(ctx context.Context, status PaymentStatus) (int, error)
}
