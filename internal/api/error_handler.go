package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/room"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusFor はドメインエラーをHTTPステータスに対応付ける
// 対応のないエラーは500として扱う
func StatusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, room.ErrHotelNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrRoomUnavailable),
		errors.Is(err, booking.ErrBookingNotPending),
		errors.Is(err, booking.ErrAlreadyPaid),
		errors.Is(err, booking.ErrAlreadyCancelled):
		return http.StatusConflict
	// ロック競合は満室ではなく一時的な混雑。リトライ可能として503を返す
	case errors.Is(err, booking.ErrRoomBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, booking.ErrInvalidStayRange),
		errors.Is(err, booking.ErrInvalidGuestCount),
		errors.Is(err, booking.ErrInvalidTotalAmount),
		errors.Is(err, booking.ErrRoomIDRequired),
		errors.Is(err, booking.ErrGuestUserIDRequired),
		errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// DomainError はドメインエラーをステータス付きのHTTPエラーに変換する
func DomainError(err error) *echo.HTTPError {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "内部サーバーエラー").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
	)

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else if domainCode := StatusFor(err); domainCode != http.StatusInternalServerError {
		// ハンドラーを素通りしたドメインエラーもステータスを保つ
		code = domainCode
		message = err.Error()
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
