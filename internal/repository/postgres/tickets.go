package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okozachenko/starbook/internal/domain"
)

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// CountForBooking returns how many tickets exist for a booking. The issuer
// uses it under the booking row lock to continue the number sequence.
func (r *TicketRepo) CountForBooking(ctx context.Context, bookingID uuid.UUID) (int, error) {
	const op = "postgres.TicketRepo.CountForBooking"

	db := r.handle()

	var n int
	if err := db.QueryRow(ctx,
		`SELECT count(*) FROM tickets WHERE booking_id = $1`,
		bookingID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return n, nil
}

// InsertBatch writes a set of issued tickets in one round trip.
//
// Returns:
//   - error: repository.ErrConflict on a duplicate ticket number.
func (r *TicketRepo) InsertBatch(ctx context.Context, tickets []domain.Ticket) error {
	const op = "postgres.TicketRepo.InsertBatch"

	if len(tickets) == 0 {
		return nil
	}

	db := r.handle()

	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(
			`INSERT INTO tickets(id, booking_id, ticket_type_id, ticket_number, payload, qr_png, issued_at)
         	 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.BookingID, t.TicketTypeID, t.Number, t.Payload, t.QRPNG, t.IssuedAt,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// ListForBooking returns a booking's tickets in issue order.
func (r *TicketRepo) ListForBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.ListForBooking"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, booking_id, ticket_type_id, ticket_number, payload, qr_png, issued_at
       	 FROM tickets
      	 WHERE booking_id = $1
      	 ORDER BY ticket_number`,
		bookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(
			&t.ID, &t.BookingID, &t.TicketTypeID, &t.Number, &t.Payload, &t.QRPNG, &t.IssuedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tickets, nil
}

// GetByNumber retrieves a ticket by its printed number. Verification scans
// come in with the number, not the id.
//
// Returns:
//   - error: repository.ErrNotFound when the ticket does not exist.
func (r *TicketRepo) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.GetByNumber"

	db := r.handle()

	var t domain.Ticket
	err := db.QueryRow(ctx,
		`SELECT id, booking_id, ticket_type_id, ticket_number, payload, qr_png, issued_at
       	 FROM tickets WHERE ticket_number = $1`,
		number,
	).Scan(&t.ID, &t.BookingID, &t.TicketTypeID, &t.Number, &t.Payload, &t.QRPNG, &t.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &t, nil
}

// Get retrieves a single ticket by id.
//
// Returns:
//   - error: repository.ErrNotFound when the ticket does not exist.
func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.Get"

	db := r.handle()

	var t domain.Ticket
	err := db.QueryRow(ctx,
		`SELECT id, booking_id, ticket_type_id, ticket_number, payload, qr_png, issued_at
       	 FROM tickets WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.BookingID, &t.TicketTypeID, &t.Number, &t.Payload, &t.QRPNG, &t.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &t, nil
}
