package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventArchived  EventStatus = "ARCHIVED"
)

type TicketTypeStatus string

const (
	TicketTypeDraft     TicketTypeStatus = "DRAFT"
	TicketTypePublished TicketTypeStatus = "PUBLISHED"
	TicketTypeArchived  TicketTypeStatus = "ARCHIVED"
)

type Event struct {
	bun.BaseModel `bun:"table:ticket_events"`

	ID          string      `bun:"id,pk" json:"id"`
	Slug        string      `bun:"slug,unique,notnull" json:"slug"`
	Title       string      `bun:"title,notnull" json:"title"`
	SummaryText string      `bun:"summary,nullzero" json:"summary,omitempty"`
	StartsAt    time.Time   `bun:"starts_at,nullzero" json:"starts_at,omitempty"`
	EndsAt      time.Time   `bun:"ends_at,nullzero" json:"ends_at,omitempty"`
	Venue       string      `bun:"venue,nullzero" json:"venue,omitempty"`
	City        string      `bun:"city,nullzero" json:"city,omitempty"`
	BannerURL   string      `bun:"banner_url,nullzero" json:"banner_url,omitempty"`
	Status      EventStatus `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time   `bun:"created_at,notnull" json:"created_at"`
}

type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID            string           `bun:"id,pk" json:"id"`
	EventID       string           `bun:"event_id,notnull" json:"event_id"`
	Name          string           `bun:"name,notnull" json:"name"`
	Description   string           `bun:"description,nullzero" json:"description,omitempty"`
	PriceCents    int64            `bun:"price_cents,notnull" json:"price_cents"`
	Currency      string           `bun:"currency,notnull" json:"currency"`
	TotalQuantity int              `bun:"total_quantity,notnull" json:"total_quantity"`
	PerOrderLimit int              `bun:"per_order_limit,nullzero" json:"per_order_limit,omitempty"`
	SaleStartsAt  time.Time        `bun:"sale_starts_at,nullzero" json:"sale_starts_at,omitempty"`
	SaleEndsAt    time.Time        `bun:"sale_ends_at,nullzero" json:"sale_ends_at,omitempty"`
	Status        TicketTypeStatus `bun:"status,notnull" json:"status"`
	CreatedAt     time.Time        `bun:"created_at,notnull" json:"created_at"`
}

type EventSummary struct {
	ID       string     `json:"id"`
	Slug     string     `json:"slug,omitempty"`
	Title    string     `json:"title"`
	StartsAt *time.Time `json:"startsAt,omitempty"`
	Venue    string     `json:"venue,omitempty"`
}

type TicketTypeSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Currency   string `json:"currency"`
}

func (e *Event) Summary() EventSummary {
	s := EventSummary{ID: e.ID, Slug: e.Slug, Title: e.Title, Venue: e.Venue}
	if !e.StartsAt.IsZero() {
		starts := e.StartsAt
		s.StartsAt = &starts
	}
	return s
}

func (t *TicketType) Summary() TicketTypeSummary {
	return TicketTypeSummary{
		ID:         t.ID,
		Name:       t.Name,
		PriceCents: t.PriceCents,
		Currency:   t.Currency,
	}
}
