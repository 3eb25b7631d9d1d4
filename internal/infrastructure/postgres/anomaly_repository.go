package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
)

type anomalyRow struct {
	ID         string    `db:"id"`
	Kind       string    `db:"kind"`
	BookingID  *string   `db:"booking_id"`
	EventType  string    `db:"event_type"`
	ExternalID string    `db:"external_id"`
	Amount     int       `db:"amount"`
	Currency   string    `db:"currency"`
	Detail     string    `db:"detail"`
	CreatedAt  time.Time `db:"created_at"`
}

type AnomalyRepository struct{ db *sqlx.DB }

func NewAnomalyRepository(db *sqlx.DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

func (r *AnomalyRepository) Create(ctx context.Context, a *payment.Anomaly) error {
	query := `INSERT INTO payment_anomalies (kind, booking_id, event_type, external_id, amount, currency, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query,
		string(a.Kind), a.BookingID, a.EventType, a.ExternalID, a.Amount, a.Currency, a.Detail, a.CreatedAt,
	).Scan(&a.ID); err != nil {
		return fmt.Errorf("異常記録作成に失敗: %w", err)
	}
	return nil
}

func (r *AnomalyRepository) List(ctx context.Context, limit, offset int) ([]*payment.Anomaly, error) {
	var rows []anomalyRow
	query := `SELECT id, kind, booking_id, event_type, external_id, amount, currency, detail, created_at
		FROM payment_anomalies ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("異常記録取得に失敗: %w", err)
	}
	result := make([]*payment.Anomaly, len(rows))
	for i, row := range rows {
		result[i] = &payment.Anomaly{
			ID: row.ID, Kind: payment.AnomalyKind(row.Kind), BookingID: row.BookingID,
			EventType: row.EventType, ExternalID: row.ExternalID,
			Amount: row.Amount, Currency: row.Currency, Detail: row.Detail,
			CreatedAt: row.CreatedAt,
		}
	}
	return result, nil
}

var _ payment.AnomalyRepository = (*AnomalyRepository)(nil)
