package payment

import (
	"context"
	"time"
)

// Session は外部決済プロセッサに発行したチェックアウトセッションの記録を表す
// Webhook イベントが予約IDメタデータを欠く場合の二次照合に使用する
type Session struct {
	ID               string
	BookingID        string
	ExternalID       string
	ExternalIntentID *string
	Amount           int
	Currency         string
	RedirectURL      string
	CreatedAt        time.Time
}

// SessionRepository はチェックアウトセッション記録のインターフェース
type SessionRepository interface {
	// Create はセッション記録を作成する
	Create(ctx context.Context, s *Session) error

	// GetByExternalID は外部セッションIDから記録を取得する
	GetByExternalID(ctx context.Context, externalID string) (*Session, error)

	// GetByExternalIntentID は外部決済インテントIDから記録を取得する
	GetByExternalIntentID(ctx context.Context, intentID string) (*Session, error)
}
