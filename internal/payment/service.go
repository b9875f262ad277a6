package payment

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-payments/internal/apperr"
	"ms-payments/internal/izipay"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	paymentdb "ms-payments/internal/payment/db"
	"ms-payments/internal/tickets"
	ticketsdb "ms-payments/internal/tickets/db"
)

const maxOrderCodeAttempts = 5

// Gateway opens payment sessions. Satisfied by izipay.Client.
type Gateway interface {
	CreatePayment(ctx context.Context, input izipay.CreatePaymentInput) (*izipay.CreatePaymentResult, error)
	PublicKey() string
	JSURL() string
}

// Issuer mints tickets on a caller-supplied transaction. Satisfied by
// tickets.Service.
type Issuer interface {
	Issue(ctx context.Context, idb bun.IDB, input tickets.IssueInput) (*models.FulfillmentResult, string, error)
	LoadResult(ctx context.Context, issueID string) (*models.FulfillmentResult, error)
}

// Publisher fans payment outcomes out to the rest of the platform.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type Topics struct {
	Fulfilled string
	Declined  string
}

type Service struct {
	store     *paymentdb.DB
	catalog   *ticketsdb.DB
	issuer    Issuer
	gateway   Gateway
	publisher Publisher
	topics    Topics
	logger    *logger.Logger
}

// New wires the orchestrator. publisher may be nil when the broker is
// disabled; outcome events are then skipped.
func New(store *paymentdb.DB, catalog *ticketsdb.DB, issuer Issuer, gateway Gateway,
	publisher Publisher, topics Topics, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		catalog:   catalog,
		issuer:    issuer,
		gateway:   gateway,
		publisher: publisher,
		topics:    topics,
		logger:    log,
	}
}

// CreateOrder opens a checkout: it allocates an order row, asks the gateway
// for a form token and hands the browser everything it needs to mount the
// card form.
func (s *Service) CreateOrder(ctx context.Context, eventSlug string, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	event, err := s.catalog.GetEventBySlug(ctx, eventSlug)
	if err != nil {
		return nil, err
	}
	if event.Status != models.EventPublished {
		return nil, apperr.ErrEventNotFound
	}

	ticketType, err := s.catalog.GetTicketType(ctx, s.catalog.Bun, req.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if ticketType.EventID != event.ID || ticketType.Status != models.TicketTypePublished {
		return nil, apperr.ErrTicketTypeGone
	}
	now := time.Now()
	if !ticketType.SaleStartsAt.IsZero() && now.Before(ticketType.SaleStartsAt) {
		return nil, apperr.ErrTicketTypeGone
	}
	if !ticketType.SaleEndsAt.IsZero() && now.After(ticketType.SaleEndsAt) {
		return nil, apperr.ErrTicketTypeGone
	}

	if ticketType.PerOrderLimit > 0 && req.Quantity > ticketType.PerOrderLimit {
		return nil, apperr.PerOrderLimitExceeded(ticketType.PerOrderLimit)
	}

	// Advisory check only. The binding stock gate runs inside the
	// fulfillment transaction.
	issued, err := s.catalog.IssuedCount(ctx, s.catalog.Bun, ticketType.ID)
	if err != nil {
		return nil, err
	}
	if remaining := ticketType.TotalQuantity - issued; req.Quantity > remaining {
		return nil, apperr.NotEnoughStock(remaining)
	}

	amount := ticketType.PriceCents * int64(req.Quantity)
	currency := normalizeCurrency(ticketType.Currency)

	payment, err := s.allocateOrder(ctx, event, ticketType, req, amount, currency)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.CreatePayment(ctx, izipay.CreatePaymentInput{
		Amount:   amount,
		Currency: currency,
		OrderID:  payment.OrderCode,
		Customer: izipay.Customer{
			Email:     req.BuyerEmail,
			Reference: payment.ID,
			BillingDetails: &izipay.BillingDetails{
				FirstName:   firstWord(req.BuyerName),
				LastName:    restWords(req.BuyerName),
				PhoneNumber: req.BuyerPhone,
			},
		},
		Metadata: map[string]string{
			"eventSlug":    event.Slug,
			"ticketTypeId": ticketType.ID,
			"quantity":     strconv.Itoa(req.Quantity),
		},
	})
	if err != nil {
		payment.Status = models.PaymentError
		payment.LastError = err.Error()
		if updateErr := s.store.Update(ctx, payment, "status", "last_error"); updateErr != nil {
			s.logger.Error("PAYMENT", fmt.Sprintf("recording gateway failure for %s: %v", payment.OrderCode, updateErr))
		}
		return nil, err
	}

	payment.Status = models.PaymentFormReady
	payment.FormToken = result.FormToken
	payment.RawResponse = string(result.Raw)
	if err := s.store.Update(ctx, payment, "status", "form_token", "raw_response"); err != nil {
		return nil, err
	}

	s.logger.LogPayment("CHECKOUT", payment.OrderCode,
		fmt.Sprintf("%d x %s for %s", req.Quantity, ticketType.Name, event.Slug))

	return &models.CheckoutResponse{
		OrderCode:   payment.OrderCode,
		FormToken:   result.FormToken,
		PublicKey:   s.gateway.PublicKey(),
		ScriptURL:   s.gateway.JSURL(),
		AmountCents: amount,
		Currency:    currency,
		TicketType:  ticketType.Summary(),
		Event:       event.Summary(),
		Buyer: models.BuyerSummary{
			Name:  req.BuyerName,
			Email: req.BuyerEmail,
			Phone: req.BuyerPhone,
		},
	}, nil
}

func (s *Service) allocateOrder(ctx context.Context, event *models.Event, ticketType *models.TicketType,
	req models.CheckoutRequest, amount int64, currency string) (*models.Payment, error) {
	for attempt := 0; attempt < maxOrderCodeAttempts; attempt++ {
		code, err := buildOrderCode(event.Slug, attempt)
		if err != nil {
			return nil, err
		}
		payment := &models.Payment{
			ID:           uuid.NewString(),
			OrderCode:    code,
			EventID:      event.ID,
			TicketTypeID: ticketType.ID,
			Quantity:     req.Quantity,
			AmountCents:  amount,
			Currency:     currency,
			BuyerName:    req.BuyerName,
			BuyerEmail:   req.BuyerEmail,
			BuyerPhone:   req.BuyerPhone,
			Status:       models.PaymentPending,
			CreatedAt:    time.Now(),
		}
		err = s.store.Create(ctx, payment)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, paymentdb.ErrDuplicateOrderCode) {
			return nil, err
		}
		s.logger.Warn("PAYMENT", fmt.Sprintf("order code collision on %s, retrying", code))
	}
	return nil, apperr.ErrPaymentCreation
}

// ConfirmInput is one confirmation signal, from either channel. Explicit
// fields win over the answer probes.
type ConfirmInput struct {
	OrderCode       string
	RawStatus       string
	TransactionUUID string
	Message         string
	RawAnswer       string
	Answer          izipay.Answer
	Origin          models.ConfirmOrigin
}

// Confirm drives the order toward a terminal state. It is idempotent and
// safe under concurrent delivery: the browser redirect and the webhook can
// both call it, in any order, any number of times.
func (s *Service) Confirm(ctx context.Context, input ConfirmInput) (*models.PaymentProjection, error) {
	orderCode := input.OrderCode
	if orderCode == "" && input.Answer != nil {
		orderCode = input.Answer.OrderCode()
	}
	if orderCode == "" {
		return nil, apperr.ErrPaymentNotFound
	}

	payment, err := s.store.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, err
	}

	rawStatus := input.RawStatus
	if rawStatus == "" && input.Answer != nil {
		rawStatus = input.Answer.Status()
	}
	normalized := izipay.NormalizeStatus(rawStatus)

	txUUID := input.TransactionUUID
	if txUUID == "" && input.Answer != nil {
		txUUID = input.Answer.TransactionUUID()
	}

	message := input.Message

	// A paid answer can still carry a failed 3DS authentication.
	if normalized == models.PaymentPaid && input.Answer != nil {
		if failure := izipay.DetectThreeDSFailure(input.Answer); failure != nil {
			s.logger.LogWebhook("3DS_DECLINE", orderCode, failure.Message)
			normalized = models.PaymentDeclined
			message = failure.Message
		}
	}

	s.logger.LogPayment("CONFIRM", orderCode,
		fmt.Sprintf("origin=%s raw=%q normalized=%s", input.Origin, rawStatus, normalized))

	if normalized == models.PaymentPaid || normalized == models.PaymentFulfilled ||
		payment.Status == models.PaymentFulfilled {
		return s.fulfill(ctx, payment, rawStatus, message, txUUID, input.RawAnswer)
	}

	// Declines and cancellations never overwrite a finished order, and a
	// terminal decline is not reopened by a later duplicate.
	if payment.Status.Terminal() {
		return s.projection(ctx, payment)
	}

	payment.Status = normalized
	payment.ProviderStatus = rawStatus
	payment.TransactionUUID = coalesce(txUUID, payment.TransactionUUID)
	payment.ProviderMessage = coalesce(message, payment.ProviderMessage)
	payment.RawResponse = coalesce(input.RawAnswer, payment.RawResponse)

	// Non-terminal rows are rewritten freely, even back to PENDING. Side
	// effects only fire on the claim path.
	if err := s.store.Update(ctx, payment,
		"status", "provider_status", "provider_message", "transaction_uuid", "raw_response"); err != nil {
		return nil, err
	}
	if normalized == models.PaymentDeclined || normalized == models.PaymentCancelled {
		s.publish(ctx, s.topics.Declined, payment, "payment.declined")
	}

	return s.projection(ctx, payment)
}

// errClaimLost marks the normal idempotent path: another confirmation holds
// or held the claim, so this one must not mint.
var errClaimLost = errors.New("fulfillment claim lost")

// fulfill claims the order and mints tickets in one transaction. The claim
// update locks the row, so a competing confirmation blocks until this one
// commits and then finds issue_id already set.
func (s *Service) fulfill(ctx context.Context, payment *models.Payment, rawStatus, message, txUUID, rawAnswer string) (*models.PaymentProjection, error) {
	payment.Status = models.PaymentPaid
	payment.ProviderStatus = coalesce(rawStatus, payment.ProviderStatus)
	payment.ProviderMessage = coalesce(message, payment.ProviderMessage)
	payment.TransactionUUID = coalesce(txUUID, payment.TransactionUUID)
	payment.RawResponse = coalesce(rawAnswer, payment.RawResponse)

	var result *models.FulfillmentResult
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		claimed, err := s.store.Claim(ctx, tx, payment.OrderCode)
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}

		var issueID string
		result, issueID, err = s.issuer.Issue(ctx, tx, tickets.IssueInput{
			EventID:        payment.EventID,
			TicketTypeID:   payment.TicketTypeID,
			Quantity:       payment.Quantity,
			RecipientName:  payment.BuyerName,
			RecipientEmail: payment.BuyerEmail,
			RecipientPhone: payment.BuyerPhone,
			OrderCode:      payment.OrderCode,
		})
		if err != nil {
			return err
		}
		payment.IssueID = issueID
		return s.store.MarkFulfilled(ctx, tx, payment.OrderCode, issueID, payment)
	})
	if errors.Is(err, errClaimLost) {
		// Report the current truth without side effects.
		current, err := s.store.GetByOrderCode(ctx, payment.OrderCode)
		if err != nil {
			return nil, err
		}
		s.logger.LogPayment("CLAIM_LOST", payment.OrderCode, string(current.Status))
		return s.projection(ctx, current)
	}
	if err != nil {
		// The rollback already released the claim. Record why it failed
		// and keep the order PAID so a redelivery can retry.
		if failErr := s.store.MarkFulfillmentFailed(ctx, payment.OrderCode, err.Error()); failErr != nil {
			s.logger.Error("PAYMENT", fmt.Sprintf("releasing claim for %s: %v", payment.OrderCode, failErr))
		}
		s.logger.Error("PAYMENT", fmt.Sprintf("fulfillment of %s failed: %v", payment.OrderCode, err))
		return nil, err
	}

	payment.Status = models.PaymentFulfilled
	s.logger.LogPayment("FULFILLED", payment.OrderCode,
		fmt.Sprintf("%d ticket(s) minted, issue %s", len(result.Tickets), payment.IssueID))
	s.publish(ctx, s.topics.Fulfilled, payment, "payment.fulfilled")

	return &models.PaymentProjection{
		PaymentStatus:   payment.Status,
		ProviderStatus:  payment.ProviderStatus,
		Message:         payment.ProviderMessage,
		OrderCode:       payment.OrderCode,
		TransactionUUID: payment.TransactionUUID,
		Result:          result,
	}, nil
}

// Status is the polling view behind the checkout page.
func (s *Service) Status(ctx context.Context, orderCode string) (*models.PaymentProjection, error) {
	payment, err := s.store.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	return s.projection(ctx, payment)
}

func (s *Service) projection(ctx context.Context, payment *models.Payment) (*models.PaymentProjection, error) {
	projection := &models.PaymentProjection{
		PaymentStatus:   payment.Status,
		ProviderStatus:  payment.ProviderStatus,
		Message:         payment.ProviderMessage,
		OrderCode:       payment.OrderCode,
		TransactionUUID: payment.TransactionUUID,
	}
	if payment.Status == models.PaymentFulfilled && payment.IssueID != "" {
		result, err := s.issuer.LoadResult(ctx, payment.IssueID)
		if err != nil {
			return nil, err
		}
		projection.Result = result
	}
	return projection, nil
}

func (s *Service) publish(ctx context.Context, topic string, payment *models.Payment, eventType string) {
	if s.publisher == nil || topic == "" {
		return
	}
	event := models.PaymentEvent{
		Type:            eventType,
		OrderCode:       payment.OrderCode,
		EventID:         payment.EventID,
		Status:          payment.Status,
		AmountCents:     payment.AmountCents,
		Currency:        payment.Currency,
		TransactionUUID: payment.TransactionUUID,
		Timestamp:       time.Now(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("encoding %s for %s: %v", eventType, payment.OrderCode, err))
		return
	}
	// Outcome events are best effort and never block the payment path.
	if err := s.publisher.Publish(ctx, topic, payment.OrderCode, value); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publishing %s for %s: %v", eventType, payment.OrderCode, err))
	}
}

// buildOrderCode mints BASE-STAMP-NONCE: a short event prefix, a base36
// timestamp and a random tail that grows with each collision retry.
func buildOrderCode(eventSlug string, attempt int) (string, error) {
	base := strings.ToUpper(alnumOnly(eventSlug))
	if len(base) > 6 {
		base = base[:6]
	}
	if base == "" {
		base = "EVT"
	}

	stamp := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))

	nonce := make([]byte, 2+attempt)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	tail := strings.ToUpper(fmt.Sprintf("%x", nonce))

	return fmt.Sprintf("%s-%s-%s", base, stamp, tail), nil
}

func alnumOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeCurrency folds local spellings of the Peruvian sol onto the ISO
// code the gateway expects.
func normalizeCurrency(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "PEN", "SOL", "SOLES", "S/.", "S/":
		return "PEN"
	default:
		return strings.ToUpper(strings.TrimSpace(raw))
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstWord(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return name
	}
	return fields[0]
}

func restWords(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return ""
	}
	return strings.Join(fields[1:], " ")
}
