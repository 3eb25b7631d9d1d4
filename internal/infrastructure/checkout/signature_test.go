package checkout

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
)

func TestHMACVerifier_Verify(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newVerifier := func() *HMACVerifier {
		v := NewHMACVerifier(secret, 5*time.Minute)
		v.now = func() time.Time { return now }
		return v
	}

	t.Run("正しい署名は検証を通過する", func(t *testing.T) {
		header := SignPayload(secret, now.Unix(), payload)
		require.NoError(t, newVerifier().Verify(payload, header))
	})

	t.Run("許容範囲内の古いタイムスタンプは通過する", func(t *testing.T) {
		ts := now.Add(-4 * time.Minute).Unix()
		header := SignPayload(secret, ts, payload)
		require.NoError(t, newVerifier().Verify(payload, header))
	})

	t.Run("シークレットが異なる署名は拒否する", func(t *testing.T) {
		header := SignPayload("whsec_wrong", now.Unix(), payload)
		err := newVerifier().Verify(payload, header)
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	})

	t.Run("ペイロードが改ざんされた場合は拒否する", func(t *testing.T) {
		header := SignPayload(secret, now.Unix(), payload)
		tampered := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","amount":1}`)
		err := newVerifier().Verify(tampered, header)
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	})

	t.Run("許容範囲外のタイムスタンプは拒否する", func(t *testing.T) {
		ts := now.Add(-10 * time.Minute).Unix()
		header := SignPayload(secret, ts, payload)
		err := newVerifier().Verify(payload, header)
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	})

	t.Run("署名ヘッダーなしは拒否する", func(t *testing.T) {
		err := newVerifier().Verify(payload, "")
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	})

	t.Run("ヘッダー形式が不正な場合は拒否する", func(t *testing.T) {
		for _, header := range []string{
			"v1=deadbeef",
			fmt.Sprintf("t=%d", now.Unix()),
			"t=abc,v1=deadbeef",
			"garbage",
		} {
			err := newVerifier().Verify(payload, header)
			assert.ErrorIs(t, err, payment.ErrInvalidSignature, "header=%s", header)
		}
	})
}
