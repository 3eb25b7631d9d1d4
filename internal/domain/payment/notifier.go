package payment

import (
	"context"
	"time"
)

// BookingPaidEvent は決済確定時に下流へ通知するイベント
type BookingPaidEvent struct {
	BookingID   string    `json:"booking_id"`
	RoomID      string    `json:"room_id"`
	HotelID     string    `json:"hotel_id"`
	GuestUserID string    `json:"guest_user_id"`
	CheckIn     string    `json:"check_in"`
	CheckOut    string    `json:"check_out"`
	TotalAmount int       `json:"total_amount"`
	Currency    string    `json:"currency"`
	PaidAt      time.Time `json:"paid_at"`
}

// Notifier は決済確定通知のインターフェース
// 通知は fire-and-forget であり、失敗しても決済確定処理を妨げてはならない
type Notifier interface {
	PublishBookingPaid(ctx context.Context, ev BookingPaidEvent) error
}
