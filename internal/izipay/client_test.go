package izipay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payments/internal/apperr"
	"ms-payments/internal/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(ClientConfig{
		Endpoint:    server.URL,
		SiteID:      "12345678",
		APIPassword: "testpassword_123",
	}, logger.NewTestLogger())
	return client, server
}

func TestCreatePaymentReturnsFormToken(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/V4/Charge/CreatePayment", r.URL.Path)

		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("12345678:testpassword_123"))
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"SUCCESS","answer":{"formToken":"tok_abc123"}}`))
	})

	result, err := client.CreatePayment(context.Background(), CreatePaymentInput{
		Amount:   15000,
		Currency: "PEN",
		OrderID:  "EVT-XYZ-01",
		Customer: Customer{
			Email: "buyer@example.com",
			BillingDetails: &BillingDetails{
				FirstName: "Test",
				LastName:  "Buyer",
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "tok_abc123", result.FormToken)

	assert.Equal(t, float64(15000), captured["amount"])
	assert.Equal(t, "PEN", captured["currency"])
	assert.Equal(t, "EVT-XYZ-01", captured["orderId"])
}

func TestCreatePaymentPrunesEmptyFields(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"status":"SUCCESS","answer":{"formToken":"tok"}}`))
	})

	_, err := client.CreatePayment(context.Background(), CreatePaymentInput{
		Amount:   100,
		Currency: "PEN",
		OrderID:  "EVT-1",
		Customer: Customer{Email: "buyer@example.com"},
	})
	require.NoError(t, err)

	customer, ok := captured["customer"].(map[string]interface{})
	require.True(t, ok)
	_, hasBilling := customer["billingDetails"]
	assert.False(t, hasBilling, "empty billing details must not be sent")
	_, hasMetadata := captured["metadata"]
	assert.False(t, hasMetadata)
}

func TestCreatePaymentSurfacesGatewayError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"ERROR","answer":{"errorCode":"INT_902","detailedErrorMessage":"invalid order id"}}`))
	})

	_, err := client.CreatePayment(context.Background(), CreatePaymentInput{
		Amount: 100, Currency: "PEN", OrderID: "EVT-1",
	})
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "IZIPAY_CREATE_PAYMENT_FAILED", appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Contains(t, err.Error(), "INT_902")
}

func TestCreatePaymentRequiresFormToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"SUCCESS","answer":{"orderStatus":"RUNNING"}}`))
	})

	_, err := client.CreatePayment(context.Background(), CreatePaymentInput{
		Amount: 100, Currency: "PEN", OrderID: "EVT-1",
	})
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "IZIPAY_CREATE_PAYMENT_FAILED", appErr.Code)
}

func TestCreatePaymentWrapsTransportFailure(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.CreatePayment(context.Background(), CreatePaymentInput{
		Amount: 100, Currency: "PEN", OrderID: "EVT-1",
	})
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "IZIPAY_CREATE_PAYMENT_FAILED", appErr.Code)
}
