package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okozachenko/starbook/internal/domain"
	"github.com/okozachenko/starbook/internal/repository"
)

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create persists a booking together with its line items. Line items are
// written once here and never updated afterward.
//
// Returns:
//   - error: repository.ErrConflict if the booking reference collides.
func (r *BookingRepo) Create(
	ctx context.Context,
	b domain.Booking,
	items []domain.BookingLineItem,
) error {
	const op = "postgres.BookingRepo.Create"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO bookings(id, reference, event_id, customer_id, status, discount_id,
		                      total_amount, discount_amount, final_amount, booked_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.Reference, b.EventID, b.CustomerID, b.Status, b.DiscountID,
		b.TotalAmount, b.DiscountAmount, b.FinalAmount, b.BookedAt,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(
			`INSERT INTO booking_line_items(booking_id, ticket_type_id, quantity, unit_price, subtotal)
         	 VALUES ($1, $2, $3, $4, $5)`,
			b.ID, it.TicketTypeID, it.Quantity, it.UnitPrice, it.Subtotal,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Get loads a booking with its line items and event name.
//
// Returns:
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.BookingWithItems, error) {
	const op = "postgres.BookingRepo.Get"

	return r.load(ctx, op, id, false)
}

// GetForUpdate loads a booking like Get but takes a row-level lock on the
// bookings row. Confirmation, cancellation and issuance all lock through
// here so no two of them interleave on the same booking.
func (r *BookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.BookingWithItems, error) {
	const op = "postgres.BookingRepo.GetForUpdate"

	return r.load(ctx, op, id, true)
}

func (r *BookingRepo) load(
	ctx context.Context,
	op string,
	id uuid.UUID,
	forUpdate bool,
) (*domain.BookingWithItems, error) {
	db := r.handle()

	q := `SELECT b.id, b.reference, b.event_id, b.customer_id, b.status, b.discount_id,
	             b.total_amount, b.discount_amount, b.final_amount, b.booked_at,
	             e.name
      	  FROM bookings b
      	  JOIN events e ON e.id = b.event_id
      	  WHERE b.id = $1`
	if forUpdate {
		// lock the booking row only; the events row stays unlocked
		q += ` FOR UPDATE OF b`
	}

	var out domain.BookingWithItems
	err := db.QueryRow(ctx, q, id).Scan(
		&out.Booking.ID, &out.Booking.Reference, &out.Booking.EventID,
		&out.Booking.CustomerID, &out.Booking.Status, &out.Booking.DiscountID,
		&out.Booking.TotalAmount, &out.Booking.DiscountAmount,
		&out.Booking.FinalAmount, &out.Booking.BookedAt,
		&out.EventName,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	rows, err := db.Query(ctx,
		`SELECT li.id, li.booking_id, li.ticket_type_id, li.quantity,
		        li.unit_price, li.subtotal, tt.name
       	 FROM booking_line_items li
       	 JOIN ticket_types tt ON tt.id = li.ticket_type_id
      	 WHERE li.booking_id = $1
      	 ORDER BY li.id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	out.TypeNames = make(map[int64]string)
	for rows.Next() {
		var it domain.BookingLineItem
		var typeName string
		if err := rows.Scan(
			&it.ID, &it.BookingID, &it.TicketTypeID, &it.Quantity,
			&it.UnitPrice, &it.Subtotal, &typeName,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out.Items = append(out.Items, it)
		out.TypeNames[it.TicketTypeID] = typeName
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &out, nil
}

// SetStatus transitions a booking from one status to another. The WHERE
// clause on the current status makes the transition a compare-and-set: zero
// rows affected means the booking was not in the expected state.
//
// Returns:
//   - error: repository.ErrInvalidStatus when the booking is not in `from`.
func (r *BookingRepo) SetStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.BookingStatus,
) error {
	const op = "postgres.BookingRepo.SetStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE bookings SET status = $3 WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrInvalidStatus)
	}

	return nil
}

// ListByCustomer returns a customer's bookings, newest first.
func (r *BookingRepo) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListByCustomer"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, reference, event_id, customer_id, status, discount_id,
		        total_amount, discount_amount, final_amount, booked_at
       	 FROM bookings
      	 WHERE customer_id = $1
      	 ORDER BY booked_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.Reference, &b.EventID, &b.CustomerID, &b.Status, &b.DiscountID,
			&b.TotalAmount, &b.DiscountAmount, &b.FinalAmount, &b.BookedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return bookings, nil
}
