package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-payments/internal/apperr"
	"ms-payments/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func New(bdb *bun.DB) *DB {
	return &DB{Bun: bdb}
}

// RunInTx wraps fn in a transaction. The bun.IDB handed to fn must be used
// for every statement that has to commit or roll back together.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, fn)
}

func (d *DB) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	event := new(models.Event)
	err := d.Bun.NewSelect().Model(event).Where("slug = ?", slug).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (d *DB) GetEventByID(ctx context.Context, idb bun.IDB, id string) (*models.Event, error) {
	event := new(models.Event)
	err := idb.NewSelect().Model(event).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (d *DB) GetTicketType(ctx context.Context, idb bun.IDB, id string) (*models.TicketType, error) {
	tt := new(models.TicketType)
	err := idb.NewSelect().Model(tt).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrTicketTypeGone
	}
	if err != nil {
		return nil, err
	}
	return tt, nil
}

// IssuedCount counts tickets that consume stock for a ticket type.
// Cancelled tickets return their seats to the pool.
func (d *DB) IssuedCount(ctx context.Context, idb bun.IDB, ticketTypeID string) (int, error) {
	return idb.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("ticket_type_id = ?", ticketTypeID).
		Where("status != ?", models.TicketCancelled).
		Count(ctx)
}

func (d *DB) InsertIssue(ctx context.Context, idb bun.IDB, issue *models.TicketIssue) error {
	_, err := idb.NewInsert().Model(issue).Exec(ctx)
	return err
}

func (d *DB) InsertTickets(ctx context.Context, idb bun.IDB, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := idb.NewInsert().Model(&tickets).Exec(ctx)
	return err
}

func (d *DB) GetIssue(ctx context.Context, issueID string) (*models.TicketIssue, error) {
	issue := new(models.TicketIssue)
	err := d.Bun.NewSelect().Model(issue).Where("id = ?", issueID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return issue, nil
}

func (d *DB) TicketsForIssue(ctx context.Context, issueID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("issue_id = ?", issueID).
		Order("sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) GetTicketByCode(ctx context.Context, idb bun.IDB, code string) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	err := idb.NewSelect().Model(ticket).Where("code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (d *DB) MarkRedeemed(ctx context.Context, idb bun.IDB, ticket *models.Ticket) error {
	_, err := idb.NewUpdate().
		Model(ticket).
		Column("status", "validated_at", "validated_by").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) InsertScan(ctx context.Context, idb bun.IDB, scan *models.TicketScan) error {
	_, err := idb.NewInsert().Model(scan).Exec(ctx)
	return err
}

// CancelIssue voids an issue and every ticket of it that has not been
// redeemed yet, returning their seats to the pool.
func (d *DB) CancelIssue(ctx context.Context, idb bun.IDB, issueID string) (int, error) {
	_, err := idb.NewUpdate().
		Model((*models.TicketIssue)(nil)).
		Set("status = ?", models.IssueCancelled).
		Where("id = ?", issueID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	res, err := idb.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketCancelled).
		Where("issue_id = ?", issueID).
		Where("status != ?", models.TicketRedeemed).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	cancelled, err := res.RowsAffected()
	return int(cancelled), err
}
