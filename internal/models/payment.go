package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentFormReady PaymentStatus = "FORM_READY"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFulfilled PaymentStatus = "FULFILLED"
	PaymentDeclined  PaymentStatus = "DECLINED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentError     PaymentStatus = "ERROR"
)

// Terminal reports whether no further user-visible transition is expected.
// ERROR is not terminal: a later confirm attempt may still resolve the order.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentFulfilled, PaymentDeclined, PaymentCancelled:
		return true
	}
	return false
}

// Claimable reports whether the row is still eligible for the fulfillment
// claim. Matches the WHERE clause of the conditional update in payment/db.
func (s PaymentStatus) Claimable() bool {
	switch s {
	case PaymentPending, PaymentFormReady, PaymentPaid:
		return true
	}
	return false
}

type Payment struct {
	bun.BaseModel `bun:"table:ticket_payments"`

	ID              string        `bun:"id,pk" json:"id"`
	OrderCode       string        `bun:"order_code,unique,notnull" json:"order_code"`
	EventID         string        `bun:"event_id,notnull" json:"event_id"`
	TicketTypeID    string        `bun:"ticket_type_id,nullzero" json:"ticket_type_id,omitempty"`
	Quantity        int           `bun:"quantity,notnull" json:"quantity"`
	AmountCents     int64         `bun:"amount_cents,notnull" json:"amount_cents"`
	Currency        string        `bun:"currency,notnull" json:"currency"`
	BuyerName       string        `bun:"buyer_name,notnull" json:"buyer_name"`
	BuyerEmail      string        `bun:"buyer_email,notnull" json:"buyer_email"`
	BuyerPhone      string        `bun:"buyer_phone,nullzero" json:"buyer_phone,omitempty"`
	Status          PaymentStatus `bun:"status,notnull" json:"status"`
	ProviderStatus  string        `bun:"provider_status,nullzero" json:"provider_status,omitempty"`
	ProviderMessage string        `bun:"provider_message,nullzero" json:"provider_message,omitempty"`
	TransactionUUID string        `bun:"transaction_uuid,nullzero" json:"transaction_uuid,omitempty"`
	RawResponse     string        `bun:"raw_response,nullzero" json:"-"`
	FormToken       string        `bun:"form_token,nullzero" json:"-"`
	IssueID         string        `bun:"issue_id,nullzero" json:"issue_id,omitempty"`
	LastError       string        `bun:"last_error,nullzero" json:"last_error,omitempty"`
	CreatedAt       time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type CheckoutRequest struct {
	TicketTypeID string `json:"ticketTypeId" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,min=1,max=50"`
	BuyerName    string `json:"buyerName" validate:"required,min=2,max=120"`
	BuyerEmail   string `json:"buyerEmail" validate:"required,email"`
	BuyerPhone   string `json:"buyerPhone" validate:"omitempty,min=6,max=24"`
}

type CheckoutResponse struct {
	OrderCode   string            `json:"orderCode"`
	FormToken   string            `json:"formToken"`
	PublicKey   string            `json:"publicKey"`
	ScriptURL   string            `json:"scriptUrl"`
	AmountCents int64             `json:"amountCents"`
	Currency    string            `json:"currency"`
	TicketType  TicketTypeSummary `json:"ticketType"`
	Event       EventSummary      `json:"event"`
	Buyer       BuyerSummary      `json:"buyer"`
}

type BuyerSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// FinalizeRequest is what the browser posts after the payment form returns.
// kr-answer and kr-hash come straight from the gateway redirect, so the
// server can verify them the same way it verifies webhook payloads.
type FinalizeRequest struct {
	OrderCode string `json:"orderCode" validate:"omitempty,min=6"`
	KrAnswer  string `json:"kr-answer"`
	KrHash    string `json:"kr-hash"`
	KrHashKey string `json:"kr-hash-key"`
}

// ConfirmOrigin distinguishes the browser redirect from the gateway webhook.
// Both channels feed the same idempotent confirm path.
type ConfirmOrigin string

const (
	OriginClient  ConfirmOrigin = "client"
	OriginWebhook ConfirmOrigin = "webhook"
)

// PaymentProjection is what the checkout UI polls for: current status plus,
// once fulfilled, the minted ticket codes.
type PaymentProjection struct {
	PaymentStatus   PaymentStatus      `json:"paymentStatus"`
	ProviderStatus  string             `json:"providerStatus,omitempty"`
	Message         string             `json:"message,omitempty"`
	OrderCode       string             `json:"orderCode"`
	TransactionUUID string             `json:"transactionUuid,omitempty"`
	Result          *FulfillmentResult `json:"result,omitempty"`
}

type FulfillmentResult struct {
	Tickets        []TicketSummary   `json:"tickets"`
	RecipientEmail string            `json:"recipientEmail"`
	Event          EventSummary      `json:"event"`
	TicketType     TicketTypeSummary `json:"ticketType"`
	BuyerName      string            `json:"buyerName"`
}

type TicketSummary struct {
	Code      string `json:"code"`
	QRPayload string `json:"qrPayload"`
	Sequence  int    `json:"sequence"`
}

type PaymentEvent struct {
	Type            string        `json:"type"`
	OrderCode       string        `json:"order_code"`
	EventID         string        `json:"event_id"`
	Status          PaymentStatus `json:"status"`
	AmountCents     int64         `json:"amount_cents"`
	Currency        string        `json:"currency"`
	TransactionUUID string        `json:"transaction_uuid,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}
