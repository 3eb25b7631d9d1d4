package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
)

// SignatureHeader は決済プロセッサが署名を届けるヘッダー
const SignatureHeader = "X-Payment-Signature"

type WebhookHandler struct {
	service ReconciliationServiceInterface
}

func NewWebhookHandler(s ReconciliationServiceInterface) *WebhookHandler {
	return &WebhookHandler{service: s}
}

// HandlePaymentEvent godoc
// @Summary 決済Webhookを受信
// @Description 外部決済プロセッサからのイベントを検証・照合します
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-Payment-Signature header string true "HMAC署名 (t=<unix>,v1=<hex>)"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string "署名検証失敗"
// @Failure 500 {object} map[string]string "一時障害（プロセッサが再送する）"
// @Router /webhooks/payment [post]
func (h *WebhookHandler) HandlePaymentEvent(c echo.Context) error {
	// 署名は未加工のボディに対して検証する。Bindで再シリアライズしてはならない
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストボディを読み取れません")
	}

	if err := h.service.HandleEvent(c.Request().Context(), payload, c.Request().Header.Get(SignatureHeader)); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		// インフラ障害のみ5xx。プロセッサの再送に委ねる
		return echo.NewHTTPError(http.StatusInternalServerError, "イベント処理に失敗しました").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
