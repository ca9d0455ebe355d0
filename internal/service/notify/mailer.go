package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer delivers booking confirmation messages. Delivery failures are the
// caller's to log; they must never fail the booking pipeline.
type Mailer interface {
	SendBookingConfirmation(ctx context.Context, to string, m ConfirmationMail) error
}

type ConfirmationMail struct {
	BookingReference string
	EventName        string
	TicketNumbers    []string
	FinalAmount      string
}

// SMTPMailer sends plain-text mail over an unauthenticated relay.
type SMTPMailer struct {
	addr string
	from string
}

func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
}

func (m *SMTPMailer) SendBookingConfirmation(ctx context.Context, to string, mail ConfirmationMail) error {
	const op = "notify.SMTPMailer.SendBookingConfirmation"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Booking %s confirmed\r\n", mail.BookingReference)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Your booking %s for %s is confirmed.\r\n", mail.BookingReference, mail.EventName)
	fmt.Fprintf(&b, "Amount paid: %s\r\n", mail.FinalAmount)
	if len(mail.TicketNumbers) > 0 {
		fmt.Fprintf(&b, "Tickets: %s\r\n", strings.Join(mail.TicketNumbers, ", "))
	}

	if err := smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// LogMailer stands in when no SMTP relay is configured.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendBookingConfirmation(ctx context.Context, to string, mail ConfirmationMail) error {
	m.log.InfoContext(ctx, "booking confirmation (mail disabled)",
		slog.String("to", to),
		slog.String("reference", mail.BookingReference),
		slog.Int("tickets", len(mail.TicketNumbers)),
	)
	return nil
}
