package payment

import "context"

// CreateSessionInput は外部決済セッション発行の入力
type CreateSessionInput struct {
	BookingID  string
	Amount     int
	Currency   string
	SuccessURL string
	CancelURL  string
}

// GatewaySession は外部決済セッション発行の結果
type GatewaySession struct {
	ExternalID       string
	ExternalIntentID string
	RedirectURL      string
}

// Gateway は外部決済プロセッサのセッション発行インターフェース
// プロセッサ自体はブラックボックスとして扱い、リダイレクトURLの取得と
// 予約IDメタデータの埋め込みのみを契約とする
// 予約IDはセッションと決済インテントの両方のメタデータに埋め込むこと
// （Webhook がどちらのレベルのイベントを配送するか保証されないための冗長化）
type Gateway interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*GatewaySession, error)
}
