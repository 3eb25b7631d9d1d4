package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/room"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
)

// 予約確定時の分散ロック設定
const (
	roomLockTTL        = 10 * time.Second
	roomLockMaxRetries = 3
	roomLockRetryDelay = 100 * time.Millisecond

	availabilityCacheTTL = 30 * time.Second
)

// BookingService は在庫台帳を担うアプリケーションサービス
// 空室判定と予約作成のアトミック性はこのサービスが保証する
type BookingService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	roomRepo    room.Repository
	lockManager redisinfra.LockManagerInterface
	cache       redisinfra.AvailabilityCacheInterface
	currency    string
}

func NewBookingService(
	tm transaction.Manager,
	br booking.Repository,
	rr room.Repository,
	lm redisinfra.LockManagerInterface,
	cache redisinfra.AvailabilityCacheInterface,
	currency string,
) *BookingService {
	return &BookingService{
		txManager:   tm,
		bookingRepo: br,
		roomRepo:    rr,
		lockManager: lm,
		cache:       cache,
		currency:    currency,
	}
}

type CreateBookingInput struct {
	RoomID            string
	GuestUserID       string
	CheckIn           time.Time
	CheckOut          time.Time
	GuestCount        int
	PaymentMethodHint string
}

// CheckAvailability は指定客室・期間の空室状況を返す
// スナップショット照会であり、確定判定には使用しない（確定は CreateBooking が行う）
func (s *BookingService) CheckAvailability(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error) {
	if !checkIn.Before(checkOut) {
		return false, booking.ErrInvalidStayRange
	}
	if _, err := s.roomRepo.GetByID(ctx, roomID); err != nil {
		return false, err
	}

	if s.cache != nil {
		if available, err := s.cache.Get(ctx, roomID, checkIn, checkOut); err == nil {
			return available, nil
		}
	}

	overlap, err := s.bookingRepo.HasOverlap(ctx, nil, roomID, checkIn, checkOut)
	if err != nil {
		return false, err
	}
	available := !overlap

	if s.cache != nil {
		if err := s.cache.Set(ctx, roomID, checkIn, checkOut, available, availabilityCacheTTL); err != nil {
			logger.Warn("空室キャッシュ保存に失敗", zap.Error(err))
		}
	}
	return available, nil
}

// CreateBooking は空室確認と予約作成をアトミックに実行する
// 同一客室への並行予約は客室単位の分散ロックで直列化し、
// さらにDBの除外制約が最終防衛線として重複を拒否する
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	if !input.CheckIn.Before(input.CheckOut) {
		s.countBooking("invalid")
		return nil, booking.ErrInvalidStayRange
	}
	if input.GuestCount <= 0 {
		s.countBooking("invalid")
		return nil, booking.ErrInvalidGuestCount
	}

	// 客室の解決（ホテルID・室料）。不明な客室は書き込みなしで即時失敗
	rm, err := s.roomRepo.GetByID(ctx, input.RoomID)
	if err != nil {
		s.countBooking("invalid")
		return nil, err
	}

	// 合計金額は作成時点の室料で確定し、以後再計算しない
	totalAmount := rm.NightlyPrice * booking.StayNights(input.CheckIn, input.CheckOut)

	b := booking.New(input.RoomID, rm.HotelID, input.GuestUserID,
		input.CheckIn, input.CheckOut, input.GuestCount,
		totalAmount, s.currency, input.PaymentMethodHint)
	if err := b.Validate(); err != nil {
		s.countBooking("invalid")
		return nil, err
	}

	// 客室単位の分散ロック。タイムアウトは「満室」ではなく「再試行可能」として区別する
	lockStart := time.Now()
	lock, err := s.lockManager.AcquireLockWithRetry(ctx, roomLockKey(input.RoomID), roomLockTTL, roomLockMaxRetries, roomLockRetryDelay)
	if err != nil {
		s.observeLock("acquire", "failed", lockStart)
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			s.countBooking("lock_busy")
			return nil, booking.ErrRoomBusy
		}
		s.countBooking("error")
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	s.observeLock("acquire", "success", lockStart)
	defer func() {
		releaseStart := time.Now()
		if err := lock.Release(ctx); err != nil {
			s.observeLock("release", "failed", releaseStart)
			logger.Warn("ロック解放に失敗", zap.String("room_id", input.RoomID), zap.Error(err))
			return
		}
		s.observeLock("release", "success", releaseStart)
	}()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		s.countBooking("error")
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	overlap, err := s.bookingRepo.HasOverlap(ctx, tx, input.RoomID, input.CheckIn, input.CheckOut)
	if err != nil {
		s.countBooking("error")
		return nil, err
	}
	if overlap {
		s.countBooking("conflict")
		return nil, booking.ErrRoomUnavailable
	}

	if err := s.bookingRepo.Create(ctx, tx, b); err != nil {
		if errors.Is(err, booking.ErrRoomUnavailable) {
			s.countBooking("conflict")
		} else {
			s.countBooking("error")
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		s.countBooking("error")
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countBooking("success")
	s.invalidateCache(ctx, input.RoomID)

	logger.Info("予約を作成",
		zap.String("booking_id", b.ID),
		zap.String("room_id", b.RoomID),
		zap.Int("total_amount", b.TotalAmount),
	)
	return b, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

func (s *BookingService) GetUserBookings(ctx context.Context, guestUserID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookingRepo.GetByGuestUserID(ctx, guestUserID, limit, offset)
}

// HotelDashboard はホテル単位の予約一覧と売上集計
type HotelDashboard struct {
	Bookings      []*booking.Booking
	TotalBookings int
	TotalRevenue  int
}

// GetHotelDashboard はホテルの予約一覧と集計を返す
// 売上はキャンセル済みを除く予約の合計金額
func (s *BookingService) GetHotelDashboard(ctx context.Context, hotelID string, limit, offset int) (*HotelDashboard, error) {
	if _, err := s.roomRepo.GetHotelByID(ctx, hotelID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	bookings, err := s.bookingRepo.GetByHotelID(ctx, hotelID, limit, offset)
	if err != nil {
		return nil, err
	}
	dashboard := &HotelDashboard{Bookings: bookings, TotalBookings: len(bookings)}
	for _, b := range bookings {
		if b.PaymentStatus != booking.StatusCancelled {
			dashboard.TotalRevenue += b.TotalAmount
		}
	}
	return dashboard, nil
}

// CancelBooking は予約をキャンセルする
// 遷移は compare-and-set で行い、決済済み・キャンセル済みは拒否する
func (s *BookingService) CancelBooking(ctx context.Context, id, guestUserID string) (*booking.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.GuestUserID != guestUserID {
		return nil, booking.ErrBookingNotFound
	}
	// 遷移の合法性をエンティティで確認してから永続化
	if err := b.Cancel(); err != nil {
		return nil, err
	}

	ok, err := s.bookingRepo.MarkCancelled(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 判定と書き込みの間に状態が変わった（決済完了と競合）
		current, err := s.bookingRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.PaymentStatus == booking.StatusPaid {
			return nil, booking.ErrAlreadyPaid
		}
		return nil, booking.ErrAlreadyCancelled
	}

	s.invalidateCache(ctx, b.RoomID)
	logger.Info("予約をキャンセル", zap.String("booking_id", id))
	return b, nil
}

func (s *BookingService) invalidateCache(ctx context.Context, roomID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRoom(ctx, roomID); err != nil {
		logger.Warn("空室キャッシュ無効化に失敗", zap.String("room_id", roomID), zap.Error(err))
	}
}

func (s *BookingService) countBooking(status string) {
	if m := metrics.Get(); m != nil {
		m.BookingsTotal.WithLabelValues(status).Inc()
	}
}

func (s *BookingService) observeLock(operation, status string, start time.Time) {
	if m := metrics.Get(); m != nil {
		m.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
	}
}

func roomLockKey(roomID string) string {
	return "room:" + roomID
}
