package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
)

// Gateway は外部決済プロセッサのチェックアウトセッションAPIクライアント
// プロセッサはブラックボックスであり、リダイレクトURLの取得と
// メタデータへの予約ID埋め込みのみに依存する
type Gateway struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewGateway は新しいGatewayを作成する
func NewGateway(apiURL, apiKey string) *Gateway {
	return &Gateway{
		apiURL: apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createSessionRequest struct {
	Amount     int               `json:"amount"`
	Currency   string            `json:"currency"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	// セッションと決済インテントの両方に同じメタデータを埋め込む
	// Webhookがどちらのレベルのイベントを配送しても予約IDへ辿れるようにするため
	Metadata       map[string]string `json:"metadata"`
	IntentMetadata map[string]string `json:"payment_intent_data,omitempty"`
}

type createSessionResponse struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	URL           string `json:"url"`
}

// CreateSession はチェックアウトセッションを発行する
func (g *Gateway) CreateSession(ctx context.Context, input payment.CreateSessionInput) (*payment.GatewaySession, error) {
	meta := map[string]string{payment.MetadataBookingKey: input.BookingID}
	body, err := json.Marshal(createSessionRequest{
		Amount:         input.Amount,
		Currency:       input.Currency,
		SuccessURL:     input.SuccessURL,
		CancelURL:      input.CancelURL,
		Metadata:       meta,
		IntentMetadata: meta,
	})
	if err != nil {
		return nil, fmt.Errorf("セッションリクエスト生成に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("セッションリクエスト生成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("決済プロセッサへの接続に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("決済プロセッサがエラーを返しました: status=%d", resp.StatusCode)
	}

	var out createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("セッションレスポンスの解析に失敗: %w", err)
	}
	return &payment.GatewaySession{
		ExternalID:       out.ID,
		ExternalIntentID: out.PaymentIntent,
		RedirectURL:      out.URL,
	}, nil
}

var _ payment.Gateway = (*Gateway)(nil)
