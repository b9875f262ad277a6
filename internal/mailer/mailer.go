package mailer

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/skip2/go-qrcode"
	gomail "gopkg.in/gomail.v2"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

// Delivery is one ticket email: every ticket of an issue goes out in a
// single message with its QR code embedded inline.
type Delivery struct {
	RecipientName  string
	RecipientEmail string
	OrderCode      string
	Event          models.EventSummary
	TicketType     models.TicketTypeSummary
	Tickets        []models.TicketSummary
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: log,
	}
}

// SendTickets delivers the issue email. The context is honored before the
// SMTP dial; gomail itself does not take one.
func (m *Mailer) SendTickets(ctx context.Context, delivery Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetAddressHeader("To", delivery.RecipientEmail, delivery.RecipientName)
	msg.SetHeader("Subject", fmt.Sprintf("Your tickets for %s", delivery.Event.Title))

	for _, ticket := range delivery.Tickets {
		png, err := qrcode.Encode(ticket.QRPayload, qrcode.Medium, 256)
		if err != nil {
			return fmt.Errorf("encoding QR for ticket %s: %w", ticket.Code, err)
		}
		name := fmt.Sprintf("qr-%s.png", ticket.Code)
		msg.Embed(name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(png)
			return err
		}))
	}

	msg.SetBody("text/html", buildBody(delivery))

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Error("MAILER", fmt.Sprintf("delivery to %s failed: %v", delivery.RecipientEmail, err))
		return err
	}
	m.logger.LogMailer("SENT", delivery.RecipientEmail,
		fmt.Sprintf("%d ticket(s) for order %s", len(delivery.Tickets), delivery.OrderCode))
	return nil
}

func buildBody(delivery Delivery) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family:Arial,sans-serif;max-width:560px;margin:0 auto">`)
	fmt.Fprintf(&b, `<h2>%s</h2>`, html.EscapeString(delivery.Event.Title))
	fmt.Fprintf(&b, `<p>Hi %s, here are your tickets. Show the QR code at the entrance.</p>`,
		html.EscapeString(delivery.RecipientName))

	if delivery.Event.Venue != "" {
		fmt.Fprintf(&b, `<p><strong>Venue:</strong> %s</p>`, html.EscapeString(delivery.Event.Venue))
	}
	if delivery.Event.StartsAt != nil {
		fmt.Fprintf(&b, `<p><strong>Date:</strong> %s</p>`,
			delivery.Event.StartsAt.Format("Monday, 02 Jan 2006 15:04"))
	}
	fmt.Fprintf(&b, `<p><strong>Ticket:</strong> %s</p>`, html.EscapeString(delivery.TicketType.Name))
	fmt.Fprintf(&b, `<p><strong>Order:</strong> %s</p>`, html.EscapeString(delivery.OrderCode))

	for _, ticket := range delivery.Tickets {
		b.WriteString(`<div style="border:1px solid #ddd;border-radius:8px;padding:16px;margin:12px 0;text-align:center">`)
		fmt.Fprintf(&b, `<p style="font-size:18px;letter-spacing:2px"><strong>%s</strong></p>`,
			html.EscapeString(ticket.Code))
		fmt.Fprintf(&b, `<img src="cid:qr-%s.png" alt="QR %s" width="256" height="256"/>`,
			ticket.Code, html.EscapeString(ticket.Code))
		fmt.Fprintf(&b, `<p style="color:#888">Ticket %d of %d</p>`, ticket.Sequence, len(delivery.Tickets))
		b.WriteString(`</div>`)
	}

	b.WriteString(`<p style="color:#888;font-size:12px">This email is your proof of purchase. Do not share your QR codes.</p>`)
	b.WriteString(`</div>`)
	return b.String()
}
