package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okozachenko/starbook/internal/repository"
)

// InventoryRepo owns every mutation of TicketType.available_quantity. Both
// statements are single conditional updates, so the availability check and
// the mutation are one atomic step per ticket type and two concurrent
// confirmations can never both pass the check and both decrement.
type InventoryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *InventoryRepo) With(db DB) *InventoryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *InventoryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Reserve decrements a ticket type's available quantity by qty, but only if
// at least qty remain. Zero rows affected is the binding-failure signal.
//
// Returns:
//   - error: repository.ErrInsufficientQuantity when fewer than qty remain.
//   - error: repository.ErrNotFound when the ticket type does not exist.
func (r *InventoryRepo) Reserve(ctx context.Context, ticketTypeID int64, qty int) error {
	const op = "postgres.InventoryRepo.Reserve"

	if qty <= 0 {
		return fmt.Errorf("%s: quantity must be positive", op)
	}

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE ticket_types
        	SET available_quantity = available_quantity - $2
      	 WHERE id = $1
        	AND available_quantity >= $2`,
		ticketTypeID, qty,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		// distinguish a missing row from an out-of-stock one
		var exists bool
		err := db.QueryRow(ctx,
			`SELECT true FROM ticket_types WHERE id = $1`,
			ticketTypeID,
		).Scan(&exists)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
			}
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return fmt.Errorf("%s:%w", op, repository.ErrInsufficientQuantity)
	}

	return nil
}

// Release returns qty units to a ticket type's available quantity. Used by
// cancellation of a confirmed booking; the increment is a single statement
// so it cannot race a concurrent Reserve into a corrupted counter.
//
// Returns:
//   - error: repository.ErrNotFound when the ticket type does not exist.
func (r *InventoryRepo) Release(ctx context.Context, ticketTypeID int64, qty int) error {
	const op = "postgres.InventoryRepo.Release"

	if qty <= 0 {
		return fmt.Errorf("%s: quantity must be positive", op)
	}

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE ticket_types
        	SET available_quantity = available_quantity + $2
      	 WHERE id = $1`,
		ticketTypeID, qty,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
