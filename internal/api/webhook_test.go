package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-payments/internal/apperr"
	"ms-payments/internal/models"
	"ms-payments/internal/payment"
)

const webhookAnswer = `{"orderStatus":"PAID","orderDetails":{"orderId":"LIMARO-ABC-01"},"transactions":[{"status":"CAPTURED","uuid":"tx-1"}]}`

func postWebhookForm(router http.Handler, krAnswer, krHash, krHashKey string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("kr-answer", krAnswer)
	form.Set("kr-hash", krHash)
	if krHashKey != "" {
		form.Set("kr-hash-key", krHashKey)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook/izipay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookFormDeliveryConfirms(t *testing.T) {
	payments := new(MockPayments)
	router := setupRouter(payments, new(MockTickets))

	payments.On("Confirm", mock.Anything, mock.MatchedBy(func(input payment.ConfirmInput) bool {
		return input.Origin == models.OriginWebhook &&
			input.Answer.OrderCode() == "LIMARO-ABC-01" &&
			input.Answer.Status() == "PAID" &&
			input.RawAnswer == webhookAnswer
	})).Return(&models.PaymentProjection{
		PaymentStatus: models.PaymentFulfilled,
		OrderCode:     "LIMARO-ABC-01",
	}, nil).Once()

	krHash := testSigner.Compute(webhookAnswer, "sha256")
	rec := postWebhookForm(router, webhookAnswer, krHash, "sha256")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "LIMARO-ABC-01", body["orderCode"])
	assert.Equal(t, string(models.PaymentFulfilled), body["paymentStatus"])

	payments.AssertExpectations(t)
}

func TestWebhookPasswordSignedDelivery(t *testing.T) {
	payments := new(MockPayments)
	router := setupRouter(payments, new(MockTickets))

	payments.On("Confirm", mock.Anything, mock.Anything).
		Return(&models.PaymentProjection{
			PaymentStatus: models.PaymentFulfilled,
			OrderCode:     "LIMARO-ABC-01",
		}, nil).Once()

	krHash := testSigner.Compute(webhookAnswer, "password")
	rec := postWebhookForm(router, webhookAnswer, krHash, "password")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRejectsInvalidSignatureWithoutSideEffects(t *testing.T) {
	payments := new(MockPayments)
	router := setupRouter(payments, new(MockTickets))

	rec := postWebhookForm(router, webhookAnswer, "deadbeef", "sha256")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_SIGNATURE")

	payments.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
}

func TestWebhookRejectsMissingAnswer(t *testing.T) {
	payments := new(MockPayments)
	router := setupRouter(payments, new(MockTickets))

	req := httptest.NewRequest(http.MethodPost, "/webhook/izipay", strings.NewReader(""))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payments.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
}

func TestWebhookHashInHeaders(t *testing.T) {
	payments := new(MockPayments)
	router := setupRouter(payments, new(MockTickets))

	payments.On("Confirm", mock.Anything, mock.Anything).
		Return(&models.PaymentProjection{
			PaymentStatus: models.PaymentFulfilled,
			OrderCode:     "LIMARO-ABC-01",
		}, nil).Once()

	form := url.Values{}
	form.Set("kr-answer", webhookAnswer)
	req := httptest.NewRequest(http.MethodPost, "/webhook/izipay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-kr-hash", testSigner.Compute(webhookAnswer, "sha256"))
	req.Header.Set("x-kr-hash-key", "sha256")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookUnresolvableOrderIsBadRequest(t *testing.T) {
	payments := new(MockPayments)
	router := setupRouter(payments, new(MockTickets))

	payments.On("Confirm", mock.Anything, mock.Anything).
		Return(nil, apperr.ErrPaymentNotFound).Once()

	krHash := testSigner.Compute(webhookAnswer, "sha256")
	rec := postWebhookForm(router, webhookAnswer, krHash, "sha256")
	assert.Equal(t, http.StatusBadRequest, rec.Code,
		"a signed payload naming an unknown order is the gateway's fault, not a missing resource")
}

func TestWebhookSurfacesFulfillmentFailureForRedelivery(t *testing.T) {
	payments := new(MockPayments)
	router := setupRouter(payments, new(MockTickets))

	payments.On("Confirm", mock.Anything, mock.Anything).
		Return(nil, apperr.EmailSendFailed(errors.New("smtp down"))).Once()

	krHash := testSigner.Compute(webhookAnswer, "sha256")
	rec := postWebhookForm(router, webhookAnswer, krHash, "sha256")
	assert.Equal(t, http.StatusBadGateway, rec.Code, "non-2xx makes the gateway redeliver")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "EMAIL_SEND_FAILED", body["error"])
}
