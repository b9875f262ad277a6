package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-payments/internal/apperr"
	"ms-payments/internal/models"
	"ms-payments/internal/tickets/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.TicketType)(nil),
		(*models.TicketIssue)(nil),
		(*models.Ticket)(nil),
		(*models.TicketScan)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return db.New(bunDB), bunDB
}

func seedEvent(t *testing.T, bunDB *bun.DB) (*models.Event, *models.TicketType) {
	t.Helper()
	ctx := context.Background()

	event := &models.Event{
		ID:        uuid.NewString(),
		Slug:      "test-fest",
		Title:     "Test Fest",
		Venue:     "Main Hall",
		Status:    models.EventPublished,
		CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)

	tt := &models.TicketType{
		ID:            uuid.NewString(),
		EventID:       event.ID,
		Name:          "General",
		PriceCents:    5000,
		Currency:      "PEN",
		TotalQuantity: 10,
		Status:        models.TicketTypePublished,
		CreatedAt:     time.Now(),
	}
	_, err = bunDB.NewInsert().Model(tt).Exec(ctx)
	require.NoError(t, err)

	return event, tt
}

func seedTicket(t *testing.T, bunDB *bun.DB, event *models.Event, tt *models.TicketType, code string, status models.TicketStatus) *models.Ticket {
	t.Helper()
	ticket := &models.Ticket{
		ID:           uuid.NewString(),
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		IssueID:      uuid.NewString(),
		Sequence:     1,
		Code:         code,
		QRPayload:    "https://tickets.test/tickets/verify/" + code,
		OwnerName:    "Test Owner",
		OwnerEmail:   "owner@example.com",
		Status:       status,
	}
	_, err := bunDB.NewInsert().Model(ticket).Exec(context.Background())
	require.NoError(t, err)
	return ticket
}

func TestGetEventBySlug(t *testing.T) {
	store, bunDB := setupTestDB(t)
	event, _ := seedEvent(t, bunDB)

	got, err := store.GetEventBySlug(context.Background(), "test-fest")
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)

	_, err = store.GetEventBySlug(context.Background(), "missing")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "EVENT_NOT_FOUND", appErr.Code)
}

func TestGetTicketTypeMissing(t *testing.T) {
	store, _ := setupTestDB(t)

	_, err := store.GetTicketType(context.Background(), store.Bun, uuid.NewString())
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "TICKET_TYPE_NOT_AVAILABLE", appErr.Code)
}

func TestIssuedCountIgnoresCancelled(t *testing.T) {
	store, bunDB := setupTestDB(t)
	event, tt := seedEvent(t, bunDB)

	seedTicket(t, bunDB, event, tt, "AAAAAAAAA1", models.TicketSent)
	seedTicket(t, bunDB, event, tt, "AAAAAAAAA2", models.TicketRedeemed)
	seedTicket(t, bunDB, event, tt, "AAAAAAAAA3", models.TicketCancelled)

	count, err := store.IssuedCount(context.Background(), store.Bun, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGetTicketByCode(t *testing.T) {
	store, bunDB := setupTestDB(t)
	event, tt := seedEvent(t, bunDB)
	ticket := seedTicket(t, bunDB, event, tt, "CODE123456", models.TicketSent)

	got, err := store.GetTicketByCode(context.Background(), store.Bun, "CODE123456")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)

	_, err = store.GetTicketByCode(context.Background(), store.Bun, "NOPE")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "TICKET_NOT_FOUND", appErr.Code)
}

func TestCancelIssueSkipsRedeemedTickets(t *testing.T) {
	store, bunDB := setupTestDB(t)
	event, tt := seedEvent(t, bunDB)
	ctx := context.Background()

	issue := &models.TicketIssue{
		ID:             uuid.NewString(),
		EventID:        event.ID,
		TicketTypeID:   tt.ID,
		PurchaserName:  "Test Buyer",
		PurchaserEmail: "buyer@example.com",
		Quantity:       2,
		Status:         models.IssueSent,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, store.InsertIssue(ctx, bunDB, issue))

	redeemed := seedTicket(t, bunDB, event, tt, "REDEEMED01", models.TicketRedeemed)
	open := seedTicket(t, bunDB, event, tt, "OPENTKT001", models.TicketSent)
	for _, ticket := range []*models.Ticket{redeemed, open} {
		_, err := bunDB.NewUpdate().Model(ticket).Set("issue_id = ?", issue.ID).WherePK().Exec(ctx)
		require.NoError(t, err)
	}

	var cancelled int
	err := store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		cancelled, err = store.CancelIssue(ctx, tx, issue.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	gotIssue, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueCancelled, gotIssue.Status)

	stillRedeemed, err := store.GetTicketByCode(ctx, store.Bun, "REDEEMED01")
	require.NoError(t, err)
	assert.Equal(t, models.TicketRedeemed, stillRedeemed.Status)

	voided, err := store.GetTicketByCode(ctx, store.Bun, "OPENTKT001")
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, voided.Status)
}

func TestTicketsForIssueOrdersBySequence(t *testing.T) {
	store, bunDB := setupTestDB(t)
	event, tt := seedEvent(t, bunDB)
	ctx := context.Background()

	issueID := uuid.NewString()
	for i, code := range []string{"SEQTICKET2", "SEQTICKET1"} {
		ticket := seedTicket(t, bunDB, event, tt, code, models.TicketSent)
		_, err := bunDB.NewUpdate().Model(ticket).
			Set("issue_id = ?", issueID).
			Set("sequence = ?", 2-i).
			WherePK().Exec(ctx)
		require.NoError(t, err)
	}

	got, err := store.TicketsForIssue(ctx, issueID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Sequence)
	assert.Equal(t, 2, got[1].Sequence)
}
