package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

// pgErrExclusionViolation は除外制約違反（期間重複）のエラーコード
const pgErrExclusionViolation = "23P01"

type bookingRow struct {
	ID                string     `db:"id"`
	RoomID            string     `db:"room_id"`
	HotelID           string     `db:"hotel_id"`
	GuestUserID       string     `db:"guest_user_id"`
	CheckIn           time.Time  `db:"check_in"`
	CheckOut          time.Time  `db:"check_out"`
	GuestCount        int        `db:"guest_count"`
	TotalAmount       int        `db:"total_amount"`
	Currency          string     `db:"currency"`
	PaymentStatus     string     `db:"payment_status"`
	PaymentMethodHint string     `db:"payment_method_hint"`
	ExternalSessionID *string    `db:"external_session_id"`
	PaidAt            *time.Time `db:"paid_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func (r *bookingRow) toEntity() *booking.Booking {
	return &booking.Booking{
		ID: r.ID, RoomID: r.RoomID, HotelID: r.HotelID, GuestUserID: r.GuestUserID,
		CheckIn: r.CheckIn, CheckOut: r.CheckOut, GuestCount: r.GuestCount,
		TotalAmount: r.TotalAmount, Currency: r.Currency,
		PaymentStatus: booking.PaymentStatus(r.PaymentStatus), PaymentMethodHint: r.PaymentMethodHint,
		ExternalSessionID: r.ExternalSessionID, PaidAt: r.PaidAt,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

const bookingColumns = `id, room_id, hotel_id, guest_user_id, check_in, check_out, guest_count, total_amount, currency, payment_status, payment_method_hint, external_session_id, paid_at, created_at, updated_at`

type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("不正なトランザクション型です")
	}
	query := `INSERT INTO bookings (room_id, hotel_id, guest_user_id, check_in, check_out, guest_count, total_amount, currency, payment_status, payment_method_hint, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	if err := sqlxTx.QueryRowContext(ctx, query,
		b.RoomID, b.HotelID, b.GuestUserID, b.CheckIn, b.CheckOut, b.GuestCount,
		b.TotalAmount, b.Currency, string(b.PaymentStatus), b.PaymentMethodHint,
		b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID); err != nil {
		// 除外制約（期間重複）はアプリ側の重複チェックの最終防衛線
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == pgErrExclusionViolation {
			return booking.ErrRoomUnavailable
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BookingRepository) GetByGuestUserID(ctx context.Context, guestUserID string, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE guest_user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, guestUserID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *BookingRepository) GetByHotelID(ctx context.Context, hotelID string, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE hotel_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, hotelID, limit, offset); err != nil {
		return nil, fmt.Errorf("ホテル予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

// HasOverlap は半開区間 [checkIn, checkOut) と重なる非キャンセル予約の有無を返す
// 重複条件: check_in < $3 AND $2 < check_out
func (r *BookingRepository) HasOverlap(ctx context.Context, tx transaction.Tx, roomID string, checkIn, checkOut time.Time) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM bookings
		WHERE room_id = $1 AND payment_status <> 'cancelled'
		AND check_in < $3 AND $2 < check_out
	)`
	var exists bool
	var err error
	if sqlxTx := UnwrapTx(tx); sqlxTx != nil {
		err = sqlxTx.GetContext(ctx, &exists, query, roomID, checkIn, checkOut)
	} else {
		err = r.db.GetContext(ctx, &exists, query, roomID, checkIn, checkOut)
	}
	if err != nil {
		return false, fmt.Errorf("重複チェックに失敗: %w", err)
	}
	return exists, nil
}

// MarkPaid は決済状態を compare-and-set で paid へ遷移する
// 既に paid / cancelled の行は更新されず false を返す
func (r *BookingRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	query := `UPDATE bookings SET payment_status = 'paid', paid_at = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'awaiting_payment'`
	result, err := r.db.ExecContext(ctx, query, id, paidAt)
	if err != nil {
		return false, fmt.Errorf("決済確定に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

// MarkCancelled は決済状態を compare-and-set で cancelled へ遷移する
func (r *BookingRepository) MarkCancelled(ctx context.Context, id string) (bool, error) {
	query := `UPDATE bookings SET payment_status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND payment_status = 'awaiting_payment'`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("予約キャンセルに失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

func (r *BookingRepository) SetExternalSessionID(ctx context.Context, id, externalSessionID string) error {
	query := `UPDATE bookings SET external_session_id = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, externalSessionID)
	if err != nil {
		return fmt.Errorf("外部セッションID記録に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) FindAwaitingByAmount(ctx context.Context, amount int, currency string, from, to time.Time) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE payment_status = 'awaiting_payment' AND total_amount = $1 AND currency = $2
		AND created_at >= $3 AND created_at <= $4
		ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, amount, currency, from, to); err != nil {
		return nil, fmt.Errorf("金額照合クエリに失敗: %w", err)
	}
	return toEntities(rows), nil
}

// ListUnflaggedStaleAwaiting は既に stale_booking 異常として記録済みの予約を除外する
func (r *BookingRepository) ListUnflaggedStaleAwaiting(ctx context.Context, olderThan time.Duration) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings b
		WHERE b.payment_status = 'awaiting_payment' AND b.created_at < NOW() - $1::interval
		AND NOT EXISTS (
			SELECT 1 FROM payment_anomalies pa
			WHERE pa.booking_id = b.id AND pa.kind = 'stale_booking'
		)`
	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	if err := r.db.SelectContext(ctx, &rows, query, interval); err != nil {
		return nil, fmt.Errorf("滞留予約取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *BookingRepository) CountByStatus(ctx context.Context, status booking.PaymentStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM bookings WHERE payment_status = $1`, string(status))
	return count, err
}

func toEntities(rows []bookingRow) []*booking.Booking {
	result := make([]*booking.Booking, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

var _ booking.Repository = (*BookingRepository)(nil)
