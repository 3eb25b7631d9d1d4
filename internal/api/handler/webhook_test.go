package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
)

// MockReconciliationService はReconciliationServiceInterfaceのモック
type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	args := m.Called(ctx, payload, sigHeader)
	return args.Error(0)
}

func TestWebhookHandler_HandlePaymentEvent(t *testing.T) {
	e := NewTestEcho()
	body := `{"id":"evt_1","type":"checkout.session.completed"}`

	t.Run("受理したら received を返す", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		mockService.On("HandleEvent", mock.Anything, []byte(body), "t=1,v1=abc").Return(nil)

		handler := NewWebhookHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(SignatureHeader, "t=1,v1=abc")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.HandlePaymentEvent(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp["received"])

		mockService.AssertExpectations(t)
	})

	t.Run("署名検証失敗は400", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		mockService.On("HandleEvent", mock.Anything, []byte(body), "").
			Return(payment.ErrInvalidSignature)

		handler := NewWebhookHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.HandlePaymentEvent(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})

	t.Run("インフラ障害は500でプロセッサに再送させる", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		mockService.On("HandleEvent", mock.Anything, []byte(body), "t=1,v1=abc").
			Return(errors.New("db connection error"))

		handler := NewWebhookHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
		req.Header.Set(SignatureHeader, "t=1,v1=abc")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.HandlePaymentEvent(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
	})
}
