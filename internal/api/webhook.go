package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"ms-payments/internal/apperr"
	"ms-payments/internal/izipay"
	"ms-payments/internal/models"
	"ms-payments/internal/payment"
)

// Webhook is the gateway's server-to-server notification (IPN). The gateway
// retries on any non-2xx response, which is exactly what we want after a
// transient fulfillment failure.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "unreadable body")
		return
	}

	krAnswer, krHash, krHashKey := extractWebhookFields(r, body)
	if krAnswer == "" {
		writeBadRequest(w, "kr-answer is required")
		return
	}

	// The signature covers the raw kr-answer string. Verify before parsing
	// anything out of it.
	if !h.Signer.Verify(krAnswer, krHash, krHashKey) {
		h.Logger.LogSecurity("WEBHOOK_BAD_SIGNATURE", "rejected notification")
		writeError(w, apperr.ErrInvalidSignature)
		return
	}

	var answer izipay.Answer
	if err := json.Unmarshal([]byte(krAnswer), &answer); err != nil {
		writeBadRequest(w, "kr-answer is not valid JSON")
		return
	}

	projection, err := h.Payments.Confirm(r.Context(), payment.ConfirmInput{
		RawAnswer: krAnswer,
		Answer:    answer,
		Origin:    models.OriginWebhook,
	})
	if err != nil {
		// An authenticated payload naming an order we never opened is a bad
		// request from the gateway's side, not a missing resource of ours.
		if errors.Is(err, apperr.ErrPaymentNotFound) {
			writeBadRequest(w, "unresolvable order code")
			return
		}
		writeError(w, err)
		return
	}

	h.Cache.Put(r.Context(), projection)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":            true,
		"orderCode":     projection.OrderCode,
		"paymentStatus": projection.PaymentStatus,
	})
}

// extractWebhookFields pulls kr-answer, kr-hash and kr-hash-key from a
// form-encoded body, falling back to headers for the hash fields. Both
// delivery styles show up in the wild.
func extractWebhookFields(r *http.Request, body []byte) (krAnswer, krHash, krHashKey string) {
	if form, err := parseForm(body); err == nil {
		krAnswer = form.Get("kr-answer")
		krHash = form.Get("kr-hash")
		krHashKey = form.Get("kr-hash-key")
	}

	if krAnswer == "" {
		// JSON delivery: the whole body is the answer document and the
		// hash rides in headers.
		var probe map[string]interface{}
		if json.Unmarshal(body, &probe) == nil && len(probe) > 0 {
			if nested, ok := probe["kr-answer"].(string); ok {
				krAnswer = nested
			} else {
				krAnswer = string(body)
			}
			if h, ok := probe["kr-hash"].(string); ok && krHash == "" {
				krHash = h
			}
			if k, ok := probe["kr-hash-key"].(string); ok && krHashKey == "" {
				krHashKey = k
			}
		}
	}

	if krHash == "" {
		krHash = firstHeader(r, "kr-hash", "x-kr-hash")
	}
	if krHashKey == "" {
		krHashKey = firstHeader(r, "kr-hash-key", "x-kr-hash-key")
	}
	return krAnswer, krHash, krHashKey
}

func parseForm(body []byte) (url.Values, error) {
	return url.ParseQuery(string(body))
}

func firstHeader(r *http.Request, names ...string) string {
	for _, name := range names {
		if value := r.Header.Get(name); value != "" {
			return value
		}
	}
	return ""
}
