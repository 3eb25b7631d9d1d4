package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/api"
	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/booking"
)

// 日付パラメータの形式（チェックイン・チェックアウトは日単位）
const dateLayout = "2006-01-02"

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type CreateBookingRequest struct {
	RoomID        string `json:"room_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	CheckIn       string `json:"check_in" validate:"required" example:"2025-07-01"`
	CheckOut      string `json:"check_out" validate:"required" example:"2025-07-03"`
	GuestCount    int    `json:"guest_count" validate:"required,min=1" example:"2"`
	PaymentMethod string `json:"payment_method" example:"card"`
}

type BookingResponse struct {
	ID            string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	RoomID        string     `json:"room_id"`
	HotelID       string     `json:"hotel_id"`
	GuestUserID   string     `json:"guest_user_id"`
	CheckIn       string     `json:"check_in" example:"2025-07-01"`
	CheckOut      string     `json:"check_out" example:"2025-07-03"`
	GuestCount    int        `json:"guest_count"`
	TotalAmount   int        `json:"total_amount" example:"24000"`
	Currency      string     `json:"currency" example:"jpy"`
	PaymentStatus string     `json:"payment_status" example:"awaiting_payment"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID: b.ID, RoomID: b.RoomID, HotelID: b.HotelID,
		GuestUserID: b.GuestUserID,
		CheckIn:     b.CheckIn.Format(dateLayout),
		CheckOut:    b.CheckOut.Format(dateLayout),
		GuestCount:  b.GuestCount, TotalAmount: b.TotalAmount,
		Currency: b.Currency, PaymentStatus: string(b.PaymentStatus),
		PaidAt: b.PaidAt, CreatedAt: b.CreatedAt,
	}
}

type AvailabilityResponse struct {
	RoomID    string `json:"room_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Available bool   `json:"available"`
}

// CheckAvailability godoc
// @Summary 空室状況を確認
// @Description 指定客室・期間の空室状況を返します（参考値。確定は予約作成時）
// @Tags rooms
// @Produce json
// @Param id path string true "客室ID"
// @Param check_in query string true "チェックイン日 (YYYY-MM-DD)"
// @Param check_out query string true "チェックアウト日 (YYYY-MM-DD)"
// @Success 200 {object} AvailabilityResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /rooms/{id}/availability [get]
func (h *BookingHandler) CheckAvailability(c echo.Context) error {
	roomID := c.Param("id")
	checkIn, err := time.Parse(dateLayout, c.QueryParam("check_in"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "チェックイン日が不正です")
	}
	checkOut, err := time.Parse(dateLayout, c.QueryParam("check_out"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "チェックアウト日が不正です")
	}

	available, err := h.service.CheckAvailability(c.Request().Context(), roomID, checkIn, checkOut)
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{
		RoomID:    roomID,
		CheckIn:   checkIn.Format(dateLayout),
		CheckOut:  checkOut.Format(dateLayout),
		Available: available,
	})
}

// Create godoc
// @Summary 予約を作成
// @Description 空室確認と予約作成をアトミックに実行します。作成直後は決済待ちです
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string "期間が重複する予約が存在"
// @Failure 503 {object} map[string]string "客室が処理中（リトライ可能）"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	checkIn, err := time.Parse(dateLayout, req.CheckIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "チェックイン日が不正です")
	}
	checkOut, err := time.Parse(dateLayout, req.CheckOut)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "チェックアウト日が不正です")
	}

	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		RoomID:            req.RoomID,
		GuestUserID:       userID,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		GuestCount:        req.GuestCount,
		PaymentMethodHint: req.PaymentMethod,
	})
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetByID godoc
// @Summary 予約を取得
// @Description 指定IDの予約を取得します
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} map[string]string
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	b, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// GetUserBookings godoc
// @Summary ユーザーの予約一覧を取得
// @Description ログインユーザーの予約一覧を新しい順に取得します
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Failure 401 {object} map[string]string
// @Router /bookings [get]
func (h *BookingHandler) GetUserBookings(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	bookings, err := h.service.GetUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return api.DomainError(err)
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 決済待ちの予約をキャンセルします。決済済みはキャンセルできません
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "既に決済済みまたはキャンセル済み"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	b, err := h.service.CancelBooking(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

type HotelDashboardResponse struct {
	Bookings      []BookingResponse `json:"bookings"`
	TotalBookings int               `json:"total_bookings"`
	TotalRevenue  int               `json:"total_revenue"`
}

// HotelDashboard godoc
// @Summary ホテルの予約ダッシュボード
// @Description ホテルの予約一覧と売上集計を返します（売上はキャンセル済みを除く）
// @Tags hotels
// @Produce json
// @Param id path string true "ホテルID"
// @Param limit query int false "取得件数" default(50)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {object} HotelDashboardResponse
// @Failure 404 {object} map[string]string
// @Router /hotels/{id}/dashboard [get]
func (h *BookingHandler) HotelDashboard(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	dashboard, err := h.service.GetHotelDashboard(c.Request().Context(), c.Param("id"), limit, offset)
	if err != nil {
		return api.DomainError(err)
	}
	resp := HotelDashboardResponse{
		Bookings:      make([]BookingResponse, len(dashboard.Bookings)),
		TotalBookings: dashboard.TotalBookings,
		TotalRevenue:  dashboard.TotalRevenue,
	}
	for i, b := range dashboard.Bookings {
		resp.Bookings[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}
