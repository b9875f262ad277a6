// Package apperr carries domain errors across service boundaries with a
// stable code and an HTTP status, so handlers never have to guess.
package apperr

import (
	"errors"
	"fmt"
)

type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// As unwraps err into an *Error if one is anywhere in the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

var (
	ErrEventNotFound    = New("EVENT_NOT_FOUND", "event not found", 404)
	ErrTicketTypeGone   = New("TICKET_TYPE_NOT_AVAILABLE", "ticket type not available", 404)
	ErrPaymentNotFound  = New("PAYMENT_NOT_FOUND", "payment order not found", 404)
	ErrTicketNotFound   = New("TICKET_NOT_FOUND", "ticket not found", 404)
	ErrInvalidSignature = New("INVALID_SIGNATURE", "webhook signature does not match", 400)
	ErrPaymentCreation  = New("PAYMENT_CREATION_FAILED", "could not allocate a payment order", 500)
)

func NotEnoughStock(remaining int) *Error {
	return New("NOT_ENOUGH_STOCK",
		fmt.Sprintf("not enough stock for this purchase, %d remaining", remaining), 400)
}

func PerOrderLimitExceeded(limit int) *Error {
	return New("PER_ORDER_LIMIT_EXCEEDED",
		fmt.Sprintf("at most %d tickets per order", limit), 400)
}

func GatewayCreateFailed(cause error) *Error {
	return New("IZIPAY_CREATE_PAYMENT_FAILED",
		fmt.Sprintf("could not start the payment session: %v", cause), 502)
}

func EmailSendFailed(cause error) *Error {
	return New("EMAIL_SEND_FAILED",
		fmt.Sprintf("could not deliver the ticket email: %v", cause), 502)
}
