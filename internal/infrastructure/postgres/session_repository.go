package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
)

type sessionRow struct {
	ID               string    `db:"id"`
	BookingID        string    `db:"booking_id"`
	ExternalID       string    `db:"external_id"`
	ExternalIntentID *string   `db:"external_intent_id"`
	Amount           int       `db:"amount"`
	Currency         string    `db:"currency"`
	RedirectURL      string    `db:"redirect_url"`
	CreatedAt        time.Time `db:"created_at"`
}

func (r *sessionRow) toEntity() *payment.Session {
	return &payment.Session{
		ID: r.ID, BookingID: r.BookingID, ExternalID: r.ExternalID,
		ExternalIntentID: r.ExternalIntentID, Amount: r.Amount, Currency: r.Currency,
		RedirectURL: r.RedirectURL, CreatedAt: r.CreatedAt,
	}
}

type SessionRepository struct{ db *sqlx.DB }

func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *payment.Session) error {
	query := `INSERT INTO checkout_sessions (booking_id, external_id, external_intent_id, amount, currency, redirect_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query,
		s.BookingID, s.ExternalID, s.ExternalIntentID, s.Amount, s.Currency, s.RedirectURL, s.CreatedAt,
	).Scan(&s.ID); err != nil {
		return fmt.Errorf("セッション記録作成に失敗: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByExternalID(ctx context.Context, externalID string) (*payment.Session, error) {
	var row sessionRow
	query := `SELECT id, booking_id, external_id, external_intent_id, amount, currency, redirect_url, created_at
		FROM checkout_sessions WHERE external_id = $1`
	if err := r.db.GetContext(ctx, &row, query, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrSessionNotFound
		}
		return nil, fmt.Errorf("セッション記録取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *SessionRepository) GetByExternalIntentID(ctx context.Context, intentID string) (*payment.Session, error) {
	var row sessionRow
	query := `SELECT id, booking_id, external_id, external_intent_id, amount, currency, redirect_url, created_at
		FROM checkout_sessions WHERE external_intent_id = $1 ORDER BY created_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, intentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrSessionNotFound
		}
		return nil, fmt.Errorf("セッション記録取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

var _ payment.SessionRepository = (*SessionRepository)(nil)
