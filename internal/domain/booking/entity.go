package booking

import "time"

// PaymentStatus は予約の決済状態を表す
type PaymentStatus string

const (
	StatusAwaitingPayment PaymentStatus = "awaiting_payment"
	StatusPaid            PaymentStatus = "paid"
	StatusCancelled       PaymentStatus = "cancelled"
)

// Booking は宿泊予約エンティティを表す
// 決済状態以外のフィールドは作成時に確定し、以後変更されない
type Booking struct {
	ID                string
	RoomID            string
	HotelID           string
	GuestUserID       string
	CheckIn           time.Time
	CheckOut          time.Time
	GuestCount        int
	TotalAmount       int
	Currency          string
	PaymentStatus     PaymentStatus
	PaymentMethodHint string
	ExternalSessionID *string
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// New は新しい予約を作成する
// 合計金額は作成時点の室料から計算済みの値を受け取り、以後再計算しない
func New(roomID, hotelID, guestUserID string, checkIn, checkOut time.Time, guestCount, totalAmount int, currency, paymentMethodHint string) *Booking {
	now := time.Now()
	return &Booking{
		RoomID:            roomID,
		HotelID:           hotelID,
		GuestUserID:       guestUserID,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		GuestCount:        guestCount,
		TotalAmount:       totalAmount,
		Currency:          currency,
		PaymentStatus:     StatusAwaitingPayment,
		PaymentMethodHint: paymentMethodHint,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// StayNights は半開区間 [checkIn, checkOut) の宿泊日数を返す
func StayNights(checkIn, checkOut time.Time) int {
	return int(checkOut.Sub(checkIn).Hours() / 24)
}

// Nights は宿泊日数を返す（半開区間 [CheckIn, CheckOut)）
func (b *Booking) Nights() int {
	return StayNights(b.CheckIn, b.CheckOut)
}

// IsAwaitingPayment は決済待ちかを返す
func (b *Booking) IsAwaitingPayment() bool {
	return b.PaymentStatus == StatusAwaitingPayment
}

// Overlaps は指定の半開区間と重なるかを返す
// [a,b) と [c,d) が重なる条件は a < d かつ c < b
func (b *Booking) Overlaps(checkIn, checkOut time.Time) bool {
	return b.CheckIn.Before(checkOut) && checkIn.Before(b.CheckOut)
}

// MarkPaid は決済完了へ遷移する
// awaiting_payment 以外からの遷移は不正として拒否する
func (b *Booking) MarkPaid() error {
	switch b.PaymentStatus {
	case StatusAwaitingPayment:
		now := time.Now()
		b.PaymentStatus = StatusPaid
		b.PaidAt = &now
		b.UpdatedAt = now
		return nil
	case StatusPaid:
		return ErrAlreadyPaid
	default:
		return ErrAlreadyCancelled
	}
}

// Cancel は予約をキャンセルへ遷移する
// paid および cancelled は終端状態であり遷移できない
func (b *Booking) Cancel() error {
	switch b.PaymentStatus {
	case StatusAwaitingPayment:
		b.PaymentStatus = StatusCancelled
		b.UpdatedAt = time.Now()
		return nil
	case StatusPaid:
		return ErrAlreadyPaid
	default:
		return ErrAlreadyCancelled
	}
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.RoomID == "" {
		return ErrRoomIDRequired
	}
	if b.GuestUserID == "" {
		return ErrGuestUserIDRequired
	}
	if !b.CheckIn.Before(b.CheckOut) {
		return ErrInvalidStayRange
	}
	if b.GuestCount <= 0 {
		return ErrInvalidGuestCount
	}
	if b.TotalAmount <= 0 {
		return ErrInvalidTotalAmount
	}
	return nil
}
