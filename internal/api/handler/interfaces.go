package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
)

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CheckAvailability(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error)
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	GetUserBookings(ctx context.Context, guestUserID string, limit, offset int) ([]*booking.Booking, error)
	GetHotelDashboard(ctx context.Context, hotelID string, limit, offset int) (*application.HotelDashboard, error)
	CancelBooking(ctx context.Context, id, guestUserID string) (*booking.Booking, error)
}

// CheckoutServiceInterface は決済セッションサービスのインターフェース
type CheckoutServiceInterface interface {
	CreateCheckoutSession(ctx context.Context, bookingID, guestUserID string) (*payment.Session, error)
}

// ReconciliationServiceInterface はWebhook照合サービスのインターフェース
type ReconciliationServiceInterface interface {
	HandleEvent(ctx context.Context, payload []byte, sigHeader string) error
}
