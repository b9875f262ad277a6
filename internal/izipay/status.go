package izipay

import (
	"strings"

	"ms-payments/internal/models"
)

// NormalizeStatus maps the gateway's status vocabulary onto the internal
// payment state machine. Total: unknown or empty input degrades to PENDING,
// never to an error.
func NormalizeStatus(raw string) models.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID", "CAPTURED", "CAPTURE", "AUTHORISED", "AUTHORIZED":
		return models.PaymentPaid
	case "CANCELLED", "CANCELED", "ABANDONED":
		return models.PaymentCancelled
	case "DECLINED", "REFUSED", "FAILED", "ERROR":
		return models.PaymentDeclined
	case "FALLBACK", "WARNING":
		return models.PaymentError
	case "FULFILLED":
		return models.PaymentFulfilled
	default:
		return models.PaymentPending
	}
}
