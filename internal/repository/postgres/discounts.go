package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okozachenko/starbook/internal/domain"
	"github.com/okozachenko/starbook/internal/repository"
)

type DiscountRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *DiscountRepo) With(db DB) *DiscountRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *DiscountRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetByCode looks up a discount by its code.
//
// Returns:
//   - error: repository.ErrNotFound when the code is unknown.
func (r *DiscountRepo) GetByCode(ctx context.Context, code string) (*domain.Discount, error) {
	const op = "postgres.DiscountRepo.GetByCode"

	db := r.handle()

	var d domain.Discount
	err := db.QueryRow(ctx,
		`SELECT id, code, event_id, kind, percentage, amount,
		        valid_from, valid_to, max_usage_count, current_usage_count, is_active
       	 FROM discounts WHERE code = $1`,
		code,
	).Scan(
		&d.ID, &d.Code, &d.EventID, &d.Kind, &d.Percentage, &d.Amount,
		&d.ValidFrom, &d.ValidTo, &d.MaxUsageCount, &d.CurrentUsageCount, &d.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &d, nil
}

// ConsumeUsage increments a discount's usage count, but only while it is
// below max_usage_count. Same conditional-update discipline as inventory:
// zero rows affected means the discount is exhausted (or gone).
//
// Returns:
//   - error: repository.ErrDiscountExhausted when no usages remain.
//   - error: repository.ErrNotFound when the discount does not exist.
func (r *DiscountRepo) ConsumeUsage(ctx context.Context, id int64) error {
	const op = "postgres.DiscountRepo.ConsumeUsage"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE discounts
        	SET current_usage_count = current_usage_count + 1
      	 WHERE id = $1
        	AND (max_usage_count IS NULL OR current_usage_count < max_usage_count)`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := db.QueryRow(ctx, `SELECT true FROM discounts WHERE id = $1`, id).Scan(&exists)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
			}
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return fmt.Errorf("%s:%w", op, repository.ErrDiscountExhausted)
	}

	return nil
}

// Create inserts a discount and returns its ID.
//
// Returns:
//   - error: repository.ErrConflict on a duplicate code.
func (r *DiscountRepo) Create(ctx context.Context, d domain.Discount) (int64, error) {
	const op = "postgres.DiscountRepo.Create"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO discounts(code, event_id, kind, percentage, amount,
		                       valid_from, valid_to, max_usage_count, current_usage_count, is_active)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
     	 RETURNING id`,
		d.Code, d.EventID, d.Kind, d.Percentage, d.Amount,
		d.ValidFrom, d.ValidTo, d.MaxUsageCount, d.CurrentUsageCount, d.IsActive,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}
