package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-hotel-reservation/internal/api/handler"
	"github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/checkout"
)

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo    *echo.Echo
	Cleanup func()
}

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

// seedHotelAndRoom はテスト用のホテルと客室をDBへ直接投入する
// ホテル・客室の管理APIは対象外のため、シードはSQLで行う
func seedHotelAndRoom(t *testing.T, nightlyPrice int) (hotelID, roomID string) {
	t.Helper()

	err := testDB.QueryRow(
		`INSERT INTO hotels (name, owner_user_id, city) VALUES ($1, $2, $3) RETURNING id`,
		"東京ステーションホテル", uuid.NewString(), "東京",
	).Scan(&hotelID)
	require.NoError(t, err)

	err = testDB.QueryRow(
		`INSERT INTO rooms (hotel_id, room_number, room_type, nightly_price) VALUES ($1, $2, $3, $4) RETURNING id`,
		hotelID, "301", "double", nightlyPrice,
	).Scan(&roomID)
	require.NoError(t, err)

	return hotelID, roomID
}

// postSignedWebhook は署名付きWebhookイベントを送信する
func postSignedWebhook(s *TestServer, event map[string]interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(event)
	sig := checkout.SignPayload(webhookSecret, time.Now().Unix(), payload)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handler.SignatureHeader, sig)

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func checkoutCompletedWebhook(bookingID string, amount int) map[string]interface{} {
	return map[string]interface{}{
		"id":      "evt_" + uuid.NewString()[:8],
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":           "cs_" + uuid.NewString()[:8],
				"amount_total": amount,
				"currency":     "jpy",
				"metadata":     map[string]string{"booking_id": bookingID},
			},
		},
	}
}

// TestE2E_HealthCheck はヘルスチェックをテスト
func TestE2E_HealthCheck(t *testing.T) {
	server := getTestServer(t)

	rec := server.Request("GET", "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	err := json.Unmarshal(rec.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp["status"])
}

// TestE2E_CompleteBookingJourney は予約から決済確定までの完全なジャーニーをテスト
func TestE2E_CompleteBookingJourney(t *testing.T) {
	server := getTestServer(t)

	_, roomID := seedHotelAndRoom(t, 12000)
	guestID := uuid.NewString()
	checkIn := time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	checkOut := time.Now().AddDate(0, 0, 32).Format("2006-01-02")

	var bookingID string

	// 1. 空室確認
	t.Run("空室確認", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/rooms/%s/availability?check_in=%s&check_out=%s", roomID, checkIn, checkOut)
		rec := server.Request("GET", path, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.Equal(t, true, resp["available"])
	})

	// 2. 予約作成
	t.Run("予約作成", func(t *testing.T) {
		body := map[string]interface{}{
			"room_id":        roomID,
			"check_in":       checkIn,
			"check_out":      checkOut,
			"guest_count":    2,
			"payment_method": "card",
		}

		rec := server.Request("POST", "/api/v1/bookings", body, map[string]string{
			"X-User-ID": guestID,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp map[string]interface{}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		bookingID = resp["id"].(string)
		assert.Equal(t, "awaiting_payment", resp["payment_status"])
		assert.Equal(t, float64(24000), resp["total_amount"]) // 12000円 x 2泊
	})

	// 3. 予約後は満室になる
	t.Run("予約後の空室確認", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/rooms/%s/availability?check_in=%s&check_out=%s", roomID, checkIn, checkOut)
		rec := server.Request("GET", path, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.Equal(t, false, resp["available"])
	})

	// 4. Webhookで決済確定
	t.Run("決済Webhook受信", func(t *testing.T) {
		rec := postSignedWebhook(server, checkoutCompletedWebhook(bookingID, 24000))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp map[string]interface{}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.Equal(t, true, resp["received"])
	})

	// 5. 予約が決済済みになっている
	t.Run("決済済み確認", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/bookings/%s", bookingID)
		rec := server.Request("GET", path, nil, map[string]string{
			"X-User-ID": guestID,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.Equal(t, "paid", resp["payment_status"])
		assert.NotNil(t, resp["paid_at"])
	})

	// 6. 同じWebhookの再送は冪等
	t.Run("Webhook再送は冪等", func(t *testing.T) {
		rec := postSignedWebhook(server, checkoutCompletedWebhook(bookingID, 24000))
		require.Equal(t, http.StatusOK, rec.Code)

		var count int
		err := testDB.Get(&count, `SELECT COUNT(*) FROM bookings WHERE id = $1 AND payment_status = 'paid'`, bookingID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

// TestE2E_BookingConflict は期間重複の排他をテスト
func TestE2E_BookingConflict(t *testing.T) {
	server := getTestServer(t)

	_, roomID := seedHotelAndRoom(t, 15000)
	checkIn := time.Now().AddDate(0, 0, 14).Format("2006-01-02")
	checkOut := time.Now().AddDate(0, 0, 17).Format("2006-01-02")

	body := map[string]interface{}{
		"room_id":     roomID,
		"check_in":    checkIn,
		"check_out":   checkOut,
		"guest_count": 1,
	}

	// 1人目の予約は成功
	rec := server.Request("POST", "/api/v1/bookings", body, map[string]string{
		"X-User-ID": uuid.NewString(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// 2人目の同一期間の予約は409
	rec = server.Request("POST", "/api/v1/bookings", body, map[string]string{
		"X-User-ID": uuid.NewString(),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// チェックアウト日からの連続予約は成功する（半開区間）
	adjacent := map[string]interface{}{
		"room_id":     roomID,
		"check_in":    checkOut,
		"check_out":   time.Now().AddDate(0, 0, 19).Format("2006-01-02"),
		"guest_count": 1,
	}
	rec = server.Request("POST", "/api/v1/bookings", adjacent, map[string]string{
		"X-User-ID": uuid.NewString(),
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// TestE2E_CancelFlow はキャンセルと取り消し後の決済イベントをテスト
func TestE2E_CancelFlow(t *testing.T) {
	server := getTestServer(t)

	_, roomID := seedHotelAndRoom(t, 10000)
	guestID := uuid.NewString()

	body := map[string]interface{}{
		"room_id":     roomID,
		"check_in":    time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		"check_out":   time.Now().AddDate(0, 0, 9).Format("2006-01-02"),
		"guest_count": 2,
	}

	rec := server.Request("POST", "/api/v1/bookings", body, map[string]string{
		"X-User-ID": guestID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &created)
	bookingID := created["id"].(string)

	// キャンセル成功
	path := fmt.Sprintf("/api/v1/bookings/%s/cancel", bookingID)
	rec = server.Request("POST", path, nil, map[string]string{"X-User-ID": guestID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cancelled map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &cancelled)
	assert.Equal(t, "cancelled", cancelled["payment_status"])

	// 二重キャンセルは409
	rec = server.Request("POST", path, nil, map[string]string{"X-User-ID": guestID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// キャンセル済み予約への決済イベントは受理されるが状態は変わらず、異常記録が残る
	rec = postSignedWebhook(server, checkoutCompletedWebhook(bookingID, 20000))
	require.Equal(t, http.StatusOK, rec.Code)

	var status string
	err := testDB.Get(&status, `SELECT payment_status FROM bookings WHERE id = $1`, bookingID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", status)

	var anomalies int
	err = testDB.Get(&anomalies, `SELECT COUNT(*) FROM payment_anomalies WHERE booking_id = $1 AND kind = 'unknown_booking'`, bookingID)
	require.NoError(t, err)
	assert.Equal(t, 1, anomalies)
}

// TestE2E_WebhookSignature は署名検証をテスト
func TestE2E_WebhookSignature(t *testing.T) {
	server := getTestServer(t)

	payload, _ := json.Marshal(checkoutCompletedWebhook(uuid.NewString(), 1000))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handler.SignatureHeader, checkout.SignPayload("wrong-secret", time.Now().Unix(), payload))

	rec := httptest.NewRecorder()
	server.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestE2E_HotelDashboard はホテルダッシュボードをテスト
func TestE2E_HotelDashboard(t *testing.T) {
	server := getTestServer(t)

	hotelID, roomID := seedHotelAndRoom(t, 20000)
	guestID := uuid.NewString()

	body := map[string]interface{}{
		"room_id":     roomID,
		"check_in":    time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
		"check_out":   time.Now().AddDate(0, 1, 1).Format("2006-01-02"),
		"guest_count": 2,
	}
	rec := server.Request("POST", "/api/v1/bookings", body, map[string]string{"X-User-ID": guestID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &created)
	bookingID := created["id"].(string)

	// 決済確定で売上に計上される
	rec = postSignedWebhook(server, checkoutCompletedWebhook(bookingID, 20000))
	require.Equal(t, http.StatusOK, rec.Code)

	path := fmt.Sprintf("/api/v1/hotels/%s/dashboard", hotelID)
	rec = server.Request("GET", path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	assert.Equal(t, float64(1), resp["total_bookings"])
	assert.Equal(t, float64(20000), resp["total_revenue"])
}
