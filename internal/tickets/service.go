package tickets

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-payments/internal/apperr"
	"ms-payments/internal/logger"
	"ms-payments/internal/mailer"
	"ms-payments/internal/models"
	"ms-payments/internal/tickets/db"
)

const ticketCodeLength = 10

// Mailer delivers the issue email. Issuance runs it inside the minting
// transaction: a failed delivery rolls the whole issue back.
type Mailer interface {
	SendTickets(ctx context.Context, delivery mailer.Delivery) error
}

type Service struct {
	store   *db.DB
	mailer  Mailer
	logger  *logger.Logger
	baseURL string
}

// New builds the ticket service. mailer may be nil when email is disabled;
// issuance then skips delivery instead of failing.
func New(store *db.DB, m Mailer, log *logger.Logger, baseURL string) *Service {
	return &Service{
		store:   store,
		mailer:  m,
		logger:  log,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *Service) Store() *db.DB { return s.store }

type IssueInput struct {
	EventID        string
	TicketTypeID   string
	Quantity       int
	RecipientName  string
	RecipientEmail string
	RecipientPhone string
	OrderCode      string
	Note           string
}

// Issue mints input.Quantity tickets and emails them, all on idb. Callers
// fold it into a wider transaction so that minting commits atomically with
// whatever marks the purchase fulfilled. Returns the issue id alongside the
// result handed back to the buyer.
func (s *Service) Issue(ctx context.Context, idb bun.IDB, input IssueInput) (*models.FulfillmentResult, string, error) {
	if input.Quantity < 1 {
		return nil, "", apperr.New("INVALID_QUANTITY", "quantity must be at least 1", 400)
	}

	event, err := s.store.GetEventByID(ctx, idb, input.EventID)
	if err != nil {
		return nil, "", err
	}
	ticketType, err := s.store.GetTicketType(ctx, idb, input.TicketTypeID)
	if err != nil {
		return nil, "", err
	}
	if ticketType.EventID != event.ID {
		return nil, "", apperr.ErrTicketTypeGone
	}

	issued, err := s.store.IssuedCount(ctx, idb, ticketType.ID)
	if err != nil {
		return nil, "", err
	}
	remaining := ticketType.TotalQuantity - issued
	if input.Quantity > remaining {
		return nil, "", apperr.NotEnoughStock(remaining)
	}

	now := time.Now()
	issue := &models.TicketIssue{
		ID:             uuid.NewString(),
		EventID:        event.ID,
		TicketTypeID:   ticketType.ID,
		PurchaserName:  input.RecipientName,
		PurchaserEmail: input.RecipientEmail,
		PurchaserPhone: input.RecipientPhone,
		Quantity:       input.Quantity,
		Note:           input.Note,
		Status:         models.IssueSent,
		SentAt:         now,
		CreatedAt:      now,
	}
	if err := s.store.InsertIssue(ctx, idb, issue); err != nil {
		return nil, "", fmt.Errorf("inserting ticket issue: %w", err)
	}

	minted := make([]models.Ticket, 0, input.Quantity)
	for i := 1; i <= input.Quantity; i++ {
		code, err := generateTicketCode(ticketCodeLength)
		if err != nil {
			return nil, "", fmt.Errorf("generating ticket code: %w", err)
		}
		minted = append(minted, models.Ticket{
			ID:           uuid.NewString(),
			EventID:      event.ID,
			TicketTypeID: ticketType.ID,
			IssueID:      issue.ID,
			Sequence:     i,
			Code:         code,
			QRPayload:    s.verifyURL(code),
			OwnerName:    input.RecipientName,
			OwnerEmail:   input.RecipientEmail,
			Status:       models.TicketSent,
			SentAt:       now,
		})
	}
	if err := s.store.InsertTickets(ctx, idb, minted); err != nil {
		return nil, "", fmt.Errorf("inserting tickets: %w", err)
	}

	summaries := make([]models.TicketSummary, len(minted))
	for i := range minted {
		summaries[i] = minted[i].Summary()
	}
	result := &models.FulfillmentResult{
		Tickets:        summaries,
		RecipientEmail: input.RecipientEmail,
		Event:          event.Summary(),
		TicketType:     ticketType.Summary(),
		BuyerName:      input.RecipientName,
	}

	if s.mailer != nil {
		delivery := mailer.Delivery{
			RecipientName:  input.RecipientName,
			RecipientEmail: input.RecipientEmail,
			OrderCode:      input.OrderCode,
			Event:          result.Event,
			TicketType:     result.TicketType,
			Tickets:        summaries,
		}
		if err := s.mailer.SendTickets(ctx, delivery); err != nil {
			return nil, "", apperr.EmailSendFailed(err)
		}
	}

	s.logger.Info("TICKETS", fmt.Sprintf("issued %d ticket(s) for event %s (issue %s)",
		input.Quantity, event.Slug, issue.ID))
	return result, issue.ID, nil
}

// IssueDirect is the admin path: it opens its own transaction around Issue.
func (s *Service) IssueDirect(ctx context.Context, input IssueInput) (*models.FulfillmentResult, string, error) {
	var (
		result  *models.FulfillmentResult
		issueID string
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		result, issueID, err = s.Issue(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return result, issueID, nil
}

// LoadResult rebuilds the buyer-facing fulfillment view from a stored issue.
func (s *Service) LoadResult(ctx context.Context, issueID string) (*models.FulfillmentResult, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	event, err := s.store.GetEventByID(ctx, s.store.Bun, issue.EventID)
	if err != nil {
		return nil, err
	}
	ticketType, err := s.store.GetTicketType(ctx, s.store.Bun, issue.TicketTypeID)
	if err != nil {
		return nil, err
	}
	minted, err := s.store.TicketsForIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.TicketSummary, len(minted))
	for i := range minted {
		summaries[i] = minted[i].Summary()
	}
	return &models.FulfillmentResult{
		Tickets:        summaries,
		RecipientEmail: issue.PurchaserEmail,
		Event:          event.Summary(),
		TicketType:     ticketType.Summary(),
		BuyerName:      issue.PurchaserName,
	}, nil
}

type VerifyOutput struct {
	Code       string                   `json:"code"`
	Status     models.TicketStatus      `json:"status"`
	Sequence   int                      `json:"sequence"`
	Event      models.EventSummary      `json:"event"`
	TicketType models.TicketTypeSummary `json:"ticketType"`
}

// Verify is the public lookup behind the QR payload URL. It never exposes
// the owner's contact details.
func (s *Service) Verify(ctx context.Context, code string) (*VerifyOutput, error) {
	ticket, err := s.store.GetTicketByCode(ctx, s.store.Bun, code)
	if err != nil {
		return nil, err
	}
	event, err := s.store.GetEventByID(ctx, s.store.Bun, ticket.EventID)
	if err != nil {
		return nil, err
	}
	ticketType, err := s.store.GetTicketType(ctx, s.store.Bun, ticket.TicketTypeID)
	if err != nil {
		return nil, err
	}
	return &VerifyOutput{
		Code:       ticket.Code,
		Status:     ticket.Status,
		Sequence:   ticket.Sequence,
		Event:      event.Summary(),
		TicketType: ticketType.Summary(),
	}, nil
}

type ScanInput struct {
	Location  string `json:"location"`
	Device    string `json:"device"`
	ScannedBy string `json:"scannedBy"`
}

type ScanOutcome struct {
	Result      models.ScanResult   `json:"result"`
	Code        string              `json:"code"`
	OwnerName   string              `json:"ownerName"`
	Status      models.TicketStatus `json:"status"`
	ValidatedAt *time.Time          `json:"validatedAt,omitempty"`
	ValidatedBy string              `json:"validatedBy,omitempty"`
}

// Scan redeems a ticket at the door. Every attempt is recorded, accepted or
// not, so duplicates point back at the first redemption.
func (s *Service) Scan(ctx context.Context, code string, input ScanInput) (*ScanOutcome, error) {
	var outcome *ScanOutcome
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		ticket, err := s.store.GetTicketByCode(ctx, tx, code)
		if err != nil {
			return err
		}

		result := models.ScanAccepted
		switch {
		case ticket.Status == models.TicketCancelled:
			result = models.ScanCancelled
		case ticket.Status == models.TicketRedeemed || !ticket.ValidatedAt.IsZero():
			result = models.ScanDuplicate
		default:
			ticket.Status = models.TicketRedeemed
			ticket.ValidatedAt = time.Now()
			ticket.ValidatedBy = input.ScannedBy
			if err := s.store.MarkRedeemed(ctx, tx, ticket); err != nil {
				return err
			}
		}

		scan := &models.TicketScan{
			ID:        uuid.NewString(),
			TicketID:  ticket.ID,
			Result:    result,
			Location:  input.Location,
			Device:    input.Device,
			ScannedBy: input.ScannedBy,
			ScannedAt: time.Now(),
		}
		if err := s.store.InsertScan(ctx, tx, scan); err != nil {
			return err
		}

		outcome = &ScanOutcome{
			Result:    result,
			Code:      ticket.Code,
			OwnerName: ticket.OwnerName,
			Status:    ticket.Status,
		}
		if !ticket.ValidatedAt.IsZero() {
			validated := ticket.ValidatedAt
			outcome.ValidatedAt = &validated
			outcome.ValidatedBy = ticket.ValidatedBy
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Result != models.ScanAccepted {
		s.logger.LogSecurity("SCAN_"+string(outcome.Result),
			fmt.Sprintf("ticket %s scan rejected", code))
	}
	return outcome, nil
}

// CancelIssue voids an issue and returns its unredeemed seats to the pool.
func (s *Service) CancelIssue(ctx context.Context, issueID string) (int, error) {
	if _, err := s.store.GetIssue(ctx, issueID); err != nil {
		return 0, err
	}
	var cancelled int
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		cancelled, err = s.store.CancelIssue(ctx, tx, issueID)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("TICKETS", fmt.Sprintf("cancelled issue %s (%d ticket(s) voided)", issueID, cancelled))
	return cancelled, nil
}

func (s *Service) verifyURL(code string) string {
	return fmt.Sprintf("%s/tickets/verify/%s", s.baseURL, code)
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateTicketCode returns length characters of uppercase alphanumerics
// from crypto/rand. Rejection sampling keeps the distribution uniform.
func generateTicketCode(length int) (string, error) {
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	// 252 is the largest multiple of len(codeAlphabet) below 256
	const limit = 252
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
