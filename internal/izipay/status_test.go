package izipay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-payments/internal/models"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want models.PaymentStatus
	}{
		{"PAID", models.PaymentPaid},
		{"CAPTURED", models.PaymentPaid},
		{"CAPTURE", models.PaymentPaid},
		{"AUTHORISED", models.PaymentPaid},
		{"AUTHORIZED", models.PaymentPaid},
		{"CANCELLED", models.PaymentCancelled},
		{"CANCELED", models.PaymentCancelled},
		{"ABANDONED", models.PaymentCancelled},
		{"DECLINED", models.PaymentDeclined},
		{"REFUSED", models.PaymentDeclined},
		{"FAILED", models.PaymentDeclined},
		{"ERROR", models.PaymentDeclined},
		{"FALLBACK", models.PaymentError},
		{"WARNING", models.PaymentError},
		{"FULFILLED", models.PaymentFulfilled},
		{"RUNNING", models.PaymentPending},
		{"", models.PaymentPending},
		{"SOMETHING_ELSE", models.PaymentPending},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeStatus(tc.raw), "raw=%q", tc.raw)
	}
}

func TestNormalizeStatusIgnoresCaseAndWhitespace(t *testing.T) {
	assert.Equal(t, models.PaymentPaid, NormalizeStatus("  captured "))
	assert.Equal(t, models.PaymentDeclined, NormalizeStatus("refused"))
	assert.Equal(t, models.PaymentCancelled, NormalizeStatus("Abandoned"))
}
