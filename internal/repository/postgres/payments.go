package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okozachenko/starbook/internal/domain"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PaymentRepo) With(db DB) *PaymentRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PaymentRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Insert records a payment row. A unique constraint on
// (booking_id, transaction_id) guards duplicate transaction ids.
//
// Returns:
//   - error: repository.ErrConflict on a duplicate transaction id.
func (r *PaymentRepo) Insert(ctx context.Context, p domain.Payment) error {
	const op = "postgres.PaymentRepo.Insert"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO payments(id, booking_id, transaction_id, amount, method, status, card_last4, paid_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.BookingID, p.TransactionID, p.Amount, p.Method, p.Status, p.CardLast4, p.PaidAt,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// GetByTransaction looks up a payment by booking and transaction id.
//
// Returns:
//   - error: repository.ErrNotFound when no such payment exists.
func (r *PaymentRepo) GetByTransaction(
	ctx context.Context,
	bookingID uuid.UUID,
	transactionID string,
) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.GetByTransaction"

	db := r.handle()

	var p domain.Payment
	err := db.QueryRow(ctx,
		`SELECT id, booking_id, transaction_id, amount, method, status, card_last4, paid_at
       	 FROM payments
      	 WHERE booking_id = $1 AND transaction_id = $2`,
		bookingID, transactionID,
	).Scan(&p.ID, &p.BookingID, &p.TransactionID, &p.Amount, &p.Method, &p.Status, &p.CardLast4, &p.PaidAt)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &p, nil
}

// MarkRefunded flips a booking's successful payment to refunded. Zero rows
// affected means there was no successful payment, which is fine for a
// pending booking being cancelled.
func (r *PaymentRepo) MarkRefunded(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	const op = "postgres.PaymentRepo.MarkRefunded"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE payments SET status = $2
      	 WHERE booking_id = $1 AND status = $3`,
		bookingID, domain.PaymentRefunded, domain.PaymentSuccess,
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected() > 0, nil
}
