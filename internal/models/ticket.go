package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketCreated   TicketStatus = "CREATED"
	TicketSent      TicketStatus = "SENT"
	TicketRedeemed  TicketStatus = "REDEEMED"
	TicketCancelled TicketStatus = "CANCELLED"
)

type IssueStatus string

const (
	IssueSent      IssueStatus = "SENT"
	IssueCancelled IssueStatus = "CANCELLED"
)

type ScanResult string

const (
	ScanAccepted  ScanResult = "ACCEPTED"
	ScanDuplicate ScanResult = "DUPLICATE"
	ScanCancelled ScanResult = "CANCELLED"
)

// TicketIssue groups the tickets minted for one fulfilled payment (or one
// manual admin issuance). A payment owns at most one issue.
type TicketIssue struct {
	bun.BaseModel `bun:"table:ticket_issues"`

	ID             string      `bun:"id,pk" json:"id"`
	EventID        string      `bun:"event_id,notnull" json:"event_id"`
	TicketTypeID   string      `bun:"ticket_type_id,nullzero" json:"ticket_type_id,omitempty"`
	PurchaserName  string      `bun:"purchaser_name,notnull" json:"purchaser_name"`
	PurchaserEmail string      `bun:"purchaser_email,notnull" json:"purchaser_email"`
	PurchaserPhone string      `bun:"purchaser_phone,nullzero" json:"purchaser_phone,omitempty"`
	Quantity       int         `bun:"quantity,notnull" json:"quantity"`
	Note           string      `bun:"note,nullzero" json:"note,omitempty"`
	Status         IssueStatus `bun:"status,notnull" json:"status"`
	SentAt         time.Time   `bun:"sent_at,nullzero" json:"sent_at,omitempty"`
	CreatedAt      time.Time   `bun:"created_at,notnull" json:"created_at"`
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID           string       `bun:"id,pk" json:"id"`
	EventID      string       `bun:"event_id,notnull" json:"event_id"`
	TicketTypeID string       `bun:"ticket_type_id,nullzero" json:"ticket_type_id,omitempty"`
	IssueID      string       `bun:"issue_id,notnull" json:"issue_id"`
	Sequence     int          `bun:"sequence,notnull" json:"sequence"`
	Code         string       `bun:"code,unique,notnull" json:"code"`
	QRPayload    string       `bun:"qr_payload,notnull" json:"qr_payload"`
	OwnerName    string       `bun:"owner_name,notnull" json:"owner_name"`
	OwnerEmail   string       `bun:"owner_email,notnull" json:"owner_email"`
	Status       TicketStatus `bun:"status,notnull" json:"status"`
	SentAt       time.Time    `bun:"sent_at,nullzero" json:"sent_at,omitempty"`
	ValidatedAt  time.Time    `bun:"validated_at,nullzero" json:"validated_at,omitempty"`
	ValidatedBy  string       `bun:"validated_by,nullzero" json:"validated_by,omitempty"`
}

// TicketScan is the audit trail of redemption attempts, accepted or not.
type TicketScan struct {
	bun.BaseModel `bun:"table:ticket_scans"`

	ID        string     `bun:"id,pk" json:"id"`
	TicketID  string     `bun:"ticket_id,notnull" json:"ticket_id"`
	Result    ScanResult `bun:"result,notnull" json:"result"`
	Location  string     `bun:"location,nullzero" json:"location,omitempty"`
	Device    string     `bun:"device,nullzero" json:"device,omitempty"`
	ScannedBy string     `bun:"scanned_by,nullzero" json:"scanned_by,omitempty"`
	ScannedAt time.Time  `bun:"scanned_at,notnull" json:"scanned_at"`
}

func (t *Ticket) Summary() TicketSummary {
	return TicketSummary{Code: t.Code, QRPayload: t.QRPayload, Sequence: t.Sequence}
}
