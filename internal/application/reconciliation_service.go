package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/checkout"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
)

// 決済確定通知の送信タイムアウト
const notifyTimeout = 5 * time.Second

// ReconciliationService はWebhookイベントと予約の照合・決済確定を担う
//
// 照合の優先順位:
//  1. イベントメタデータの予約ID
//  2. 記録済みチェックアウトセッションからの逆引き
//  3. 金額・通貨・作成時刻によるフォールバック照合
//
// 署名検証後のイベントは結果にかかわらず正常応答とし、
// 解決できないものは異常記録として残す（Webhookの再送ループを防ぐため）
type ReconciliationService struct {
	bookingRepo    booking.Repository
	sessionRepo    payment.SessionRepository
	anomalyRepo    payment.AnomalyRepository
	verifier       checkout.SignatureVerifier
	notifier       payment.Notifier
	fallbackWindow time.Duration
	now            func() time.Time
}

func NewReconciliationService(
	br booking.Repository,
	sr payment.SessionRepository,
	ar payment.AnomalyRepository,
	verifier checkout.SignatureVerifier,
	notifier payment.Notifier,
	fallbackWindow time.Duration,
) *ReconciliationService {
	return &ReconciliationService{
		bookingRepo:    br,
		sessionRepo:    sr,
		anomalyRepo:    ar,
		verifier:       verifier,
		notifier:       notifier,
		fallbackWindow: fallbackWindow,
		now:            time.Now,
	}
}

// HandleEvent はWebhookの生ペイロードを検証・照合し、決済確定を行う
// payment.ErrInvalidSignature 以外のエラーはインフラ障害であり、
// 呼び出し側は5xxを返してプロセッサの再送に委ねる
func (s *ReconciliationService) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	if err := s.verifier.Verify(payload, sigHeader); err != nil {
		s.countWebhook("signature_invalid")
		return err
	}

	ev, err := payment.ParseEvent(payload)
	if err != nil {
		// 署名は正当なので再送させても結果は変わらない。記録して受理する
		logger.Warn("Webhookペイロードを解析できません", zap.Error(err))
		s.countWebhook("ignored")
		return nil
	}

	switch ev.Type {
	case payment.EventTypeCheckoutCompleted, payment.EventTypePaymentSucceeded:
	default:
		s.countWebhook("ignored")
		return nil
	}

	// 一次経路: メタデータの相関タグ
	if bookingID := ev.BookingID(); bookingID != "" {
		return s.settle(ctx, ev, bookingID, false)
	}

	// 二次経路: セッション記録からの逆引き
	session, err := s.lookupSession(ctx, ev)
	if err != nil {
		return err
	}
	if session != nil {
		return s.settle(ctx, ev, session.BookingID, false)
	}

	// 最終経路: 金額・時刻ヒューリスティック
	return s.fallbackMatch(ctx, ev)
}

// lookupSession はイベントのオブジェクトIDからセッション記録を逆引きする
func (s *ReconciliationService) lookupSession(ctx context.Context, ev *payment.Event) (*payment.Session, error) {
	var (
		session *payment.Session
		err     error
	)
	switch ev.Type {
	case payment.EventTypeCheckoutCompleted:
		session, err = s.sessionRepo.GetByExternalID(ctx, ev.Data.Object.ID)
	case payment.EventTypePaymentSucceeded:
		session, err = s.sessionRepo.GetByExternalIntentID(ctx, ev.Data.Object.ID)
	}
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("セッション記録の逆引きに失敗: %w", err)
	}
	return session, nil
}

// settle は予約を決済済みへ遷移する。冪等であり、同一イベントの再配送や
// セッション/インテント両レベルのイベント到着は2回目以降を無視する
func (s *ReconciliationService) settle(ctx context.Context, ev *payment.Event, bookingID string, viaFallback bool) error {
	paidAt := ev.OccurredAt()
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	updated, err := s.bookingRepo.MarkPaid(ctx, bookingID, paidAt)
	if err != nil {
		return fmt.Errorf("決済確定の更新に失敗: %w", err)
	}

	if !updated {
		return s.handleUnsettleable(ctx, ev, bookingID)
	}

	result := "paid"
	if viaFallback {
		result = "fallback_matched"
		if err := s.recordAnomaly(ctx, ev, payment.AnomalyFallbackMatched, &bookingID,
			"メタデータ欠落のためフォールバック照合で確定"); err != nil {
			logger.Error("異常記録の保存に失敗", zap.Error(err))
		}
	}
	s.countWebhook(result)

	logger.Info("予約の決済を確定",
		zap.String("booking_id", bookingID),
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.Type),
		zap.Bool("fallback", viaFallback),
	)

	s.notifyPaid(bookingID, paidAt)
	return nil
}

// handleUnsettleable はCASが不成立だった予約の状態を調べ、結果を分類する
func (s *ReconciliationService) handleUnsettleable(ctx context.Context, ev *payment.Event, bookingID string) error {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			s.countWebhook("anomaly")
			if err := s.recordAnomaly(ctx, ev, payment.AnomalyUnknownBooking, nil,
				fmt.Sprintf("メタデータの予約ID %s が存在しません", bookingID)); err != nil {
				return err
			}
			return nil
		}
		return fmt.Errorf("予約の取得に失敗: %w", err)
	}

	switch b.PaymentStatus {
	case booking.StatusPaid:
		// 再配送・二重イベント。確定済みなので受理して終わる
		s.countWebhook("duplicate")
		logger.Info("決済確定済みの予約への重複イベント",
			zap.String("booking_id", bookingID),
			zap.String("event_id", ev.ID),
		)
		return nil
	case booking.StatusCancelled:
		// キャンセル後に決済が成立した。返金が必要なためレビュー対象
		s.countWebhook("anomaly")
		return s.recordAnomaly(ctx, ev, payment.AnomalyUnknownBooking, &bookingID,
			"キャンセル済み予約への決済イベント（要返金確認）")
	default:
		return fmt.Errorf("決済確定に失敗: 予約 %s の状態を更新できません", bookingID)
	}
}

// fallbackMatch は金額・通貨が一致する決済待ち予約を時間窓内で探す
// 候補がちょうど1件の場合のみ確定し、0件・複数件は記録のみで書き込まない
func (s *ReconciliationService) fallbackMatch(ctx context.Context, ev *payment.Event) error {
	occurredAt := ev.OccurredAt()
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	from := occurredAt.Add(-s.fallbackWindow)

	candidates, err := s.bookingRepo.FindAwaitingByAmount(ctx, ev.Amount(), ev.Data.Object.Currency, from, occurredAt)
	if err != nil {
		return fmt.Errorf("フォールバック候補の検索に失敗: %w", err)
	}

	switch len(candidates) {
	case 1:
		return s.settle(ctx, ev, candidates[0].ID, true)
	case 0:
		s.countWebhook("anomaly")
		logger.Warn("照合先のない決済イベント",
			zap.String("event_id", ev.ID),
			zap.Int("amount", ev.Amount()),
		)
		return s.recordAnomaly(ctx, ev, payment.AnomalyUnmatched, nil,
			"金額・時間窓に一致する決済待ち予約がありません")
	default:
		// 複数候補への自動確定は誤照合のリスクがあるため保留する
		s.countWebhook("anomaly")
		logger.Warn("フォールバック照合の候補が複数",
			zap.String("event_id", ev.ID),
			zap.Int("candidates", len(candidates)),
		)
		return s.recordAnomaly(ctx, ev, payment.AnomalyAmbiguous, nil,
			fmt.Sprintf("金額・時間窓に一致する決済待ち予約が%d件あります", len(candidates)))
	}
}

// FlagUnsettledBookings は長時間決済待ちのままの予約を異常記録として残す
// 自動キャンセルは行わない。監視ワーカーから定期的に呼び出される
func (s *ReconciliationService) FlagUnsettledBookings(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.bookingRepo.ListUnflaggedStaleAwaiting(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("決済待ち予約の検索に失敗: %w", err)
	}

	flagged := 0
	for _, b := range stale {
		bookingID := b.ID
		a := &payment.Anomaly{
			Kind:      payment.AnomalyStaleBooking,
			BookingID: &bookingID,
			Amount:    b.TotalAmount,
			Currency:  b.Currency,
			Detail:    fmt.Sprintf("%s から決済待ちのまま", b.CreatedAt.Format(time.RFC3339)),
			CreatedAt: s.now(),
		}
		if err := s.anomalyRepo.Create(ctx, a); err != nil {
			logger.Error("異常記録の保存に失敗",
				zap.String("booking_id", b.ID),
				zap.Error(err),
			)
			continue
		}
		flagged++
	}

	if count, err := s.bookingRepo.CountByStatus(ctx, booking.StatusAwaitingPayment); err == nil {
		if m := metrics.Get(); m != nil {
			m.AwaitingPaymentBookings.Set(float64(count))
		}
	}

	return flagged, nil
}

// recordAnomaly はイベント情報から異常記録を作成する
func (s *ReconciliationService) recordAnomaly(ctx context.Context, ev *payment.Event, kind payment.AnomalyKind, bookingID *string, detail string) error {
	a := &payment.Anomaly{
		Kind:       kind,
		BookingID:  bookingID,
		EventType:  ev.Type,
		ExternalID: ev.Data.Object.ID,
		Amount:     ev.Amount(),
		Currency:   ev.Data.Object.Currency,
		Detail:     detail,
		CreatedAt:  s.now(),
	}
	if err := s.anomalyRepo.Create(ctx, a); err != nil {
		return fmt.Errorf("異常記録の作成に失敗: %w", err)
	}
	return nil
}

// notifyPaid は決済確定を下流へ通知する。失敗しても確定処理は巻き戻さない
func (s *ReconciliationService) notifyPaid(bookingID string, paidAt time.Time) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			logger.Error("通知用の予約取得に失敗", zap.String("booking_id", bookingID), zap.Error(err))
			return
		}
		ev := payment.BookingPaidEvent{
			BookingID:   b.ID,
			RoomID:      b.RoomID,
			HotelID:     b.HotelID,
			GuestUserID: b.GuestUserID,
			CheckIn:     b.CheckIn.Format("2006-01-02"),
			CheckOut:    b.CheckOut.Format("2006-01-02"),
			TotalAmount: b.TotalAmount,
			Currency:    b.Currency,
			PaidAt:      paidAt,
		}
		if err := s.notifier.PublishBookingPaid(ctx, ev); err != nil {
			logger.Error("決済確定通知の送信に失敗", zap.String("booking_id", bookingID), zap.Error(err))
		}
	}()
}

func (s *ReconciliationService) countWebhook(result string) {
	if m := metrics.Get(); m != nil {
		m.WebhookEventsTotal.WithLabelValues(result).Inc()
	}
}
