package payment

import "errors"

// Payment ドメインのエラー定義
var (
	ErrInvalidSignature = errors.New("Webhook署名の検証に失敗しました")
	ErrSessionNotFound  = errors.New("チェックアウトセッションが見つかりません")
)
