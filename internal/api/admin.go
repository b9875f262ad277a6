package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-payments/internal/auth"
	"ms-payments/internal/tickets"
)

type adminIssueRequest struct {
	EventID        string `json:"eventId" validate:"required"`
	TicketTypeID   string `json:"ticketTypeId" validate:"required"`
	Quantity       int    `json:"quantity" validate:"required,min=1,max=100"`
	RecipientName  string `json:"recipientName" validate:"required,min=2"`
	RecipientEmail string `json:"recipientEmail" validate:"required,email"`
	RecipientPhone string `json:"recipientPhone"`
	Note           string `json:"note"`
}

// AdminIssue mints tickets outside the payment flow, for guest lists and
// comps. It goes through the same stock gate as paid orders.
func (h *Handler) AdminIssue(w http.ResponseWriter, r *http.Request) {
	var req adminIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, issueID, err := h.Tickets.IssueDirect(r.Context(), tickets.IssueInput{
		EventID:        req.EventID,
		TicketTypeID:   req.TicketTypeID,
		Quantity:       req.Quantity,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		RecipientPhone: req.RecipientPhone,
		Note:           req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.Logger.Info("ADMIN", "manual issue "+issueID+" by "+auth.Subject(r.Context()))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"issueId": issueID,
		"result":  result,
	})
}

// AdminCancelIssue voids an issue and frees its unredeemed seats.
func (h *Handler) AdminCancelIssue(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "issueId")

	cancelled, err := h.Tickets.CancelIssue(r.Context(), issueID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.Logger.Info("ADMIN", "issue "+issueID+" cancelled by "+auth.Subject(r.Context()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"issueId":   issueID,
		"cancelled": cancelled,
	})
}

// AdminScan redeems a ticket at the door.
func (h *Handler) AdminScan(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var input tickets.ScanInput
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeBadRequest(w, "invalid request body: "+err.Error())
			return
		}
	}
	if input.ScannedBy == "" {
		input.ScannedBy = auth.Subject(r.Context())
	}

	outcome, err := h.Tickets.Scan(r.Context(), code, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
