package ticketing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/okozachenko/starbook/internal/domain"
	"github.com/okozachenko/starbook/internal/monitoring"
	"github.com/okozachenko/starbook/internal/repository"
	postgresrepo "github.com/okozachenko/starbook/internal/repository/postgres"
	"github.com/okozachenko/starbook/internal/uow"
)

const qrSizePx = 256

type Service struct {
	store *postgresrepo.Store
	uow   *uow.UoW
}

func New(store *postgresrepo.Store) *Service {
	return &Service{
		store: store,
		uow:   uow.NewUoW(store),
	}
}

// Issue creates the tickets for a confirmed booking: one per unit across its
// line items, numbered sequentially off the booking reference, each with a
// verification payload rendered into a QR PNG and both stored on the row.
// Issuance runs under the booking row lock and continues the sequence from
// however many tickets already exist, so calling it again after a partial
// or complete run never duplicates a number. It always returns the full
// ticket set for the booking.
//
// Returns:
//   - error: ticketing.ErrBookingNotFound, ticketing.ErrAccessDenied.
//   - error: ticketing.ErrBookingNotConfirmed for any non-Confirmed status.
func (s *Service) Issue(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) ([]domain.Ticket, error) {
	const op = "service.ticketing.Issue"

	var out []domain.Ticket

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		b, err := s.store.Bookings().With(tx).GetForUpdate(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		if !actor.CanAccessBooking(b.Booking.CustomerID) {
			return fmt.Errorf("%s:%w", op, ErrAccessDenied)
		}

		if b.Booking.Status != domain.BookingConfirmed {
			return fmt.Errorf("%s:%w", op, ErrBookingNotConfirmed)
		}

		existing, err := s.store.Tickets().With(tx).CountForBooking(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		expected := b.Units()
		numbers := PlanNumbers(b.Booking.Reference, existing, expected)

		if len(numbers) > 0 {
			issuedAt := time.Now().UTC()

			tickets, err := buildTickets(b, existing, numbers, issuedAt)
			if err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			if err := s.store.Tickets().With(tx).InsertBatch(ctx, tickets); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			issued := len(tickets)
			after(func(ctx context.Context) {
				monitoring.TrackTicketsIssued(issued)
			})
		}

		all, err := s.store.Tickets().With(tx).ListForBooking(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		out = all
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// buildTickets assigns the planned numbers to the booking's not yet issued
// units. Units enumerate in line-item order, so unit k always maps to the
// same ticket type across retries.
func buildTickets(
	b *domain.BookingWithItems,
	existing int,
	numbers []string,
	issuedAt time.Time,
) ([]domain.Ticket, error) {
	tickets := make([]domain.Ticket, 0, len(numbers))

	unit := 0
	next := 0
	for _, it := range b.Items {
		for q := 0; q < it.Quantity; q++ {
			unit++
			if unit <= existing || next >= len(numbers) {
				continue
			}

			payload := Payload{
				TicketNumber:     numbers[next],
				BookingReference: b.Booking.Reference,
				EventName:        b.EventName,
				TypeName:         b.TypeNames[it.TicketTypeID],
				IssuedAt:         issuedAt,
			}
			encoded := payload.Encode()

			png, err := qrcode.Encode(encoded, qrcode.Medium, qrSizePx)
			if err != nil {
				return nil, err
			}

			tickets = append(tickets, domain.Ticket{
				ID:           uuid.New(),
				BookingID:    b.Booking.ID,
				TicketTypeID: it.TicketTypeID,
				Number:       numbers[next],
				Payload:      encoded,
				QRPNG:        png,
				IssuedAt:     issuedAt,
			})
			next++
		}
	}

	return tickets, nil
}

// List returns a booking's tickets in issue order.
//
// Returns:
//   - error: ticketing.ErrBookingNotFound, ticketing.ErrAccessDenied.
func (s *Service) List(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) ([]domain.Ticket, error) {
	const op = "service.ticketing.List"

	b, err := s.store.Bookings().Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !actor.CanAccessBooking(b.Booking.CustomerID) {
		return nil, fmt.Errorf("%s:%w", op, ErrAccessDenied)
	}

	tickets, err := s.store.Tickets().ListForBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return tickets, nil
}

// PDF renders a single ticket as a printable PDF from its stored payload
// and QR image.
//
// Returns:
//   - error: ticketing.ErrTicketNotFound, ticketing.ErrAccessDenied.
func (s *Service) PDF(ctx context.Context, actor domain.Actor, ticketID uuid.UUID) ([]byte, error) {
	const op = "service.ticketing.PDF"

	t, err := s.store.Tickets().Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTicketNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	b, err := s.store.Bookings().Get(ctx, t.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !actor.CanAccessBooking(b.Booking.CustomerID) {
		return nil, fmt.Errorf("%s:%w", op, ErrAccessDenied)
	}

	p, err := DecodePayload(t.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	pdf, err := RenderTicketPDF(p, t.QRPNG)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return pdf, nil
}

// Verify decodes a scanned payload and checks it against the stored ticket.
// Staff only: this is the door-scan operation.
//
// Returns:
//   - error: ticketing.ErrBadPayload for malformed or mismatching scans.
//   - error: ticketing.ErrTicketNotFound for unknown ticket numbers.
func (s *Service) Verify(ctx context.Context, actor domain.Actor, scanned string) (*domain.Ticket, error) {
	const op = "service.ticketing.Verify"

	if !actor.IsStaff() {
		return nil, fmt.Errorf("%s:%w", op, ErrAccessDenied)
	}

	p, err := DecodePayload(scanned)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	t, err := s.store.Tickets().GetByNumber(ctx, p.TicketNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTicketNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if t.Payload != scanned {
		return nil, fmt.Errorf("%s:%w: payload does not match stored ticket", op, ErrBadPayload)
	}

	return t, nil
}
