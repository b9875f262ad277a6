package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"ms-payments/internal/apperr"
	"ms-payments/internal/izipay"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/payment"
	"ms-payments/internal/tickets"
)

// PaymentService is the checkout orchestration surface, satisfied by
// payment.Service.
type PaymentService interface {
	CreateOrder(ctx context.Context, eventSlug string, req models.CheckoutRequest) (*models.CheckoutResponse, error)
	Confirm(ctx context.Context, input payment.ConfirmInput) (*models.PaymentProjection, error)
	Status(ctx context.Context, orderCode string) (*models.PaymentProjection, error)
}

// TicketService is the ticket lifecycle surface, satisfied by
// tickets.Service.
type TicketService interface {
	Verify(ctx context.Context, code string) (*tickets.VerifyOutput, error)
	Scan(ctx context.Context, code string, input tickets.ScanInput) (*tickets.ScanOutcome, error)
	IssueDirect(ctx context.Context, input tickets.IssueInput) (*models.FulfillmentResult, string, error)
	CancelIssue(ctx context.Context, issueID string) (int, error)
}

type Handler struct {
	Payments PaymentService
	Tickets  TicketService
	Signer   *izipay.Signer
	Cache    *ProjectionCache
	Validate *validator.Validate
	Logger   *logger.Logger
}

func NewHandler(payments PaymentService, ticketSvc TicketService, signer *izipay.Signer,
	cache *ProjectionCache, log *logger.Logger) *Handler {
	return &Handler{
		Payments: payments,
		Tickets:  ticketSvc,
		Signer:   signer,
		Cache:    cache,
		Validate: validator.New(),
		Logger:   log,
	}
}

// Checkout opens a payment session for an event.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	resp, err := h.Payments.CreateOrder(r.Context(), slug, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Finalize is the browser's return leg. A signed kr-answer drives the order
// forward; without one we only report the current state.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req models.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.OrderCode == "" && req.KrAnswer == "" {
		writeBadRequest(w, "orderCode or kr-answer is required")
		return
	}

	if req.KrAnswer == "" {
		projection, err := h.Payments.Status(r.Context(), req.OrderCode)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, projection)
		return
	}

	if !h.Signer.Verify(req.KrAnswer, req.KrHash, req.KrHashKey) {
		h.Logger.LogSecurity("FINALIZE_BAD_SIGNATURE", "rejected finalize for "+req.OrderCode)
		writeError(w, apperr.ErrInvalidSignature)
		return
	}

	var answer izipay.Answer
	if err := json.Unmarshal([]byte(req.KrAnswer), &answer); err != nil {
		writeBadRequest(w, "kr-answer is not valid JSON")
		return
	}

	projection, err := h.Payments.Confirm(r.Context(), payment.ConfirmInput{
		OrderCode: req.OrderCode,
		RawAnswer: req.KrAnswer,
		Answer:    answer,
		Origin:    models.OriginClient,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.Cache.Put(r.Context(), projection)
	writeJSON(w, http.StatusOK, projection)
}

// Status is the polling endpoint behind the checkout page.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	orderCode := r.URL.Query().Get("orderCode")
	if orderCode == "" {
		writeBadRequest(w, "orderCode query parameter is required")
		return
	}

	if cached := h.Cache.Get(r.Context(), orderCode); cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	projection, err := h.Payments.Status(r.Context(), orderCode)
	if err != nil {
		writeError(w, err)
		return
	}
	h.Cache.Put(r.Context(), projection)
	writeJSON(w, http.StatusOK, projection)
}

// VerifyTicket is the public lookup behind the printed QR code.
func (h *Handler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	out, err := h.Tickets.Verify(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
