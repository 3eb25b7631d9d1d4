package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
)

// SignatureVerifier はWebhook署名を検証するインターフェース
type SignatureVerifier interface {
	Verify(payload []byte, header string) error
}

// HMACVerifier は共有シークレットによるHMAC-SHA256署名検証
// ヘッダー形式は `t=<unix秒>,v1=<hex署名>`、署名対象は `<unix秒>.<生ペイロード>`
// 検証は必ず未加工のリクエストボディに対して行うこと（再シリアライズは署名を壊す）
type HMACVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewHMACVerifier は新しいHMACVerifierを作成する
func NewHMACVerifier(secret string, tolerance time.Duration) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Verify は署名ヘッダーを検証する
// タイムスタンプが許容範囲外の場合もリプレイ防止のため拒否する
func (v *HMACVerifier) Verify(payload []byte, header string) error {
	ts, sig, err := parseSignatureHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %s", payment.ErrInvalidSignature, err)
	}

	eventTime := time.Unix(ts, 0)
	if diff := v.now().Sub(eventTime); diff > v.tolerance || diff < -v.tolerance {
		return fmt.Errorf("%w: タイムスタンプが許容範囲外です", payment.ErrInvalidSignature)
	}

	expected := ComputeSignature(v.secret, ts, payload)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return payment.ErrInvalidSignature
	}
	return nil
}

// ComputeSignature は署名値を計算する（テスト・署名生成用）
func ComputeSignature(secret []byte, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignPayload はテスト用に署名ヘッダーを生成する
func SignPayload(secret string, ts int64, payload []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, ComputeSignature([]byte(secret), ts, payload))
}

func parseSignatureHeader(header string) (int64, string, error) {
	if header == "" {
		return 0, "", fmt.Errorf("署名ヘッダーがありません")
	}
	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("タイムスタンプが不正です")
			}
			ts = parsed
		case "v1":
			sig = kv[1]
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", fmt.Errorf("署名ヘッダーの形式が不正です")
	}
	return ts, sig, nil
}

var _ SignatureVerifier = (*HMACVerifier)(nil)
