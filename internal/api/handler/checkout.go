package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/api"
)

type CheckoutHandler struct {
	service CheckoutServiceInterface
}

func NewCheckoutHandler(s CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: s}
}

type CheckoutSessionResponse struct {
	SessionID   string `json:"session_id" example:"cs_xxx"`
	RedirectURL string `json:"redirect_url" example:"https://pay.example.com/cs_xxx"`
}

// Create godoc
// @Summary 決済セッションを発行
// @Description 決済待ちの予約に対して外部決済セッションを発行し、リダイレクトURLを返します
// @Tags checkout
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 201 {object} CheckoutSessionResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "決済待ちではない予約"
// @Router /bookings/{id}/checkout [post]
func (h *CheckoutHandler) Create(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	session, err := h.service.CreateCheckoutSession(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusCreated, CheckoutSessionResponse{
		SessionID:   session.ExternalID,
		RedirectURL: session.RedirectURL,
	})
}
