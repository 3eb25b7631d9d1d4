package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
)

// CheckoutService は予約と外部決済セッションの1:1紐付けを担う
// 予約IDを相関タグとしてセッションに埋め込み、Webhookからの逆引きを可能にする
type CheckoutService struct {
	bookingRepo booking.Repository
	sessionRepo payment.SessionRepository
	gateway     payment.Gateway
	successURL  string
	cancelURL   string
}

func NewCheckoutService(
	br booking.Repository,
	sr payment.SessionRepository,
	gw payment.Gateway,
	successURL, cancelURL string,
) *CheckoutService {
	return &CheckoutService{
		bookingRepo: br,
		sessionRepo: sr,
		gateway:     gw,
		successURL:  successURL,
		cancelURL:   cancelURL,
	}
}

// CreateCheckoutSession は決済待ちの予約に対して外部決済セッションを発行する
// 同一予約への再発行は許容される（ユーザーのリトライ）。どのセッションが
// 確定しても Reconciler は同じ予約を決済済みにする
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, bookingID, guestUserID string) (*payment.Session, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GuestUserID != guestUserID {
		return nil, booking.ErrBookingNotFound
	}
	// 決済済み・キャンセル済みの予約へのセッション発行は拒否する
	if !b.IsAwaitingPayment() {
		return nil, booking.ErrBookingNotPending
	}

	gs, err := s.gateway.CreateSession(ctx, payment.CreateSessionInput{
		BookingID:  b.ID,
		Amount:     b.TotalAmount,
		Currency:   b.Currency,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("決済セッション発行に失敗: %w", err)
	}

	session := &payment.Session{
		BookingID:   b.ID,
		ExternalID:  gs.ExternalID,
		Amount:      b.TotalAmount,
		Currency:    b.Currency,
		RedirectURL: gs.RedirectURL,
		CreatedAt:   time.Now(),
	}
	if gs.ExternalIntentID != "" {
		session.ExternalIntentID = &gs.ExternalIntentID
	}

	// セッション記録はWebhook二次照合用。失敗してもメタデータの相関タグが
	// 一次経路として残るため、リダイレクト自体は成立させる
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		logger.Warn("セッション記録の保存に失敗",
			zap.String("booking_id", b.ID),
			zap.String("external_id", gs.ExternalID),
			zap.Error(err),
		)
	}

	// 外部セッションIDの記録は監査用のベストエフォート
	if err := s.bookingRepo.SetExternalSessionID(ctx, b.ID, gs.ExternalID); err != nil {
		logger.Warn("外部セッションID記録に失敗",
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}

	logger.Info("決済セッションを発行",
		zap.String("booking_id", b.ID),
		zap.String("external_id", gs.ExternalID),
	)
	return session, nil
}
