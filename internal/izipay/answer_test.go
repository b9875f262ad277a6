package izipay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderCodeProbesKnownShapes(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		want   string
	}{
		{"top level", `{"orderId": "EVT-A1"}`, "EVT-A1"},
		{"order details", `{"orderDetails": {"orderId": "EVT-A2"}}`, "EVT-A2"},
		{"under payment", `{"payment": {"orderId": "EVT-A3"}}`, "EVT-A3"},
		{"payment order details", `{"payment": {"orderDetails": {"orderId": "EVT-A4"}}}`, "EVT-A4"},
		{"absent", `{"orderStatus": "PAID"}`, ""},
		{"non string ignored", `{"orderId": 42, "orderDetails": {"orderId": "EVT-A5"}}`, "EVT-A5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseAnswer(t, tc.answer).OrderCode())
		})
	}
}

func TestStatusPrefersOrderLevel(t *testing.T) {
	answer := parseAnswer(t, `{
		"orderStatus": "PAID",
		"transactions": [{"status": "CAPTURED"}]
	}`)
	assert.Equal(t, "PAID", answer.Status())
}

func TestStatusFallsBackToNewestTransaction(t *testing.T) {
	answer := parseAnswer(t, `{
		"transactions": [
			{"status": "RUNNING"},
			{"status": "CAPTURED"}
		]
	}`)
	assert.Equal(t, "CAPTURED", answer.Status())
}

func TestStatusReadsPaymentTransactions(t *testing.T) {
	answer := parseAnswer(t, `{
		"payment": {"transactions": [{"status": "DECLINED"}]}
	}`)
	assert.Equal(t, "DECLINED", answer.Status())
	assert.Equal(t, "", parseAnswer(t, `{"transactions": []}`).Status())
}

func TestTransactionUUIDProbes(t *testing.T) {
	assert.Equal(t, "u-1", parseAnswer(t, `{"transactionUuid": "u-1"}`).TransactionUUID())
	assert.Equal(t, "u-2", parseAnswer(t, `{"transactions": [{"uuid": "u-2"}]}`).TransactionUUID())
	assert.Equal(t, "u-3", parseAnswer(t, `{"transactions": [{"uuidTransaction": "u-3"}]}`).TransactionUUID())
	assert.Equal(t, "", parseAnswer(t, `{"transactions": [{"status": "PAID"}]}`).TransactionUUID())
}
