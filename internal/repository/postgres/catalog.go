package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okozachenko/starbook/internal/domain"
)

type CatalogRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CatalogRepo) With(db DB) *CatalogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetEvent retrieves an event by its ID.
//
// Returns:
//   - *domain.Event: the event when found.
//   - error: repository.ErrNotFound if the event is not found.
func (r *CatalogRepo) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.CatalogRepo.GetEvent"

	db := r.handle()

	var e domain.Event
	err := db.QueryRow(ctx,
		`SELECT id, organizer_id, name, venue, starts_at, ends_at,
		        total_seats, available_seats, is_active, is_published
       	 FROM events WHERE id = $1`,
		id,
	).Scan(
		&e.ID, &e.OrganizerID, &e.Name, &e.Venue, &e.Starts, &e.Ends,
		&e.TotalSeats, &e.AvailableSeats, &e.IsActive, &e.IsPublished,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &e, nil
}

// ListPublishedEvents returns active, published events ordered by start time.
func (r *CatalogRepo) ListPublishedEvents(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	const op = "postgres.CatalogRepo.ListPublishedEvents"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, organizer_id, name, venue, starts_at, ends_at,
		        total_seats, available_seats, is_active, is_published
       	 FROM events
      	 WHERE is_active AND is_published
      	 ORDER BY starts_at
      	 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(
			&e.ID, &e.OrganizerID, &e.Name, &e.Venue, &e.Starts, &e.Ends,
			&e.TotalSeats, &e.AvailableSeats, &e.IsActive, &e.IsPublished,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return events, nil
}

// ListTicketTypes returns the event's ticket types with their current
// available quantities. This is the read behind the advisory check: it does
// not lock or reserve anything.
func (r *CatalogRepo) ListTicketTypes(ctx context.Context, eventID int64) ([]domain.TicketType, error) {
	const op = "postgres.CatalogRepo.ListTicketTypes"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, event_id, name, price, available_quantity
       	 FROM ticket_types
      	 WHERE event_id = $1
      	 ORDER BY id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var types []domain.TicketType
	for rows.Next() {
		var tt domain.TicketType
		if err := rows.Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Price, &tt.AvailableQuantity); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		types = append(types, tt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return types, nil
}

// GetTicketType retrieves a single ticket type.
//
// Returns:
//   - error: repository.ErrNotFound if the ticket type is not found.
func (r *CatalogRepo) GetTicketType(ctx context.Context, id int64) (*domain.TicketType, error) {
	const op = "postgres.CatalogRepo.GetTicketType"

	db := r.handle()

	var tt domain.TicketType
	err := db.QueryRow(ctx,
		`SELECT id, event_id, name, price, available_quantity
       	 FROM ticket_types WHERE id = $1`,
		id,
	).Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Price, &tt.AvailableQuantity)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &tt, nil
}

// CreateEvent inserts an event record and returns its ID.
//
// Returns:
//   - error: repository.ErrConflict on a uniqueness violation.
func (r *CatalogRepo) CreateEvent(ctx context.Context, e domain.Event) (int64, error) {
	const op = "postgres.CatalogRepo.CreateEvent"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO events(organizer_id, name, venue, starts_at, ends_at,
		                    total_seats, available_seats, is_active, is_published)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
     	 RETURNING id`,
		e.OrganizerID, e.Name, e.Venue, e.Starts, e.Ends,
		e.TotalSeats, e.AvailableSeats, e.IsActive, e.IsPublished,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

// CreateTicketType inserts a ticket type for an event and returns its ID.
func (r *CatalogRepo) CreateTicketType(ctx context.Context, tt domain.TicketType) (int64, error) {
	const op = "postgres.CatalogRepo.CreateTicketType"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO ticket_types(event_id, name, price, available_quantity)
       	 VALUES ($1, $2, $3, $4)
     	 RETURNING id`,
		tt.EventID, tt.Name, tt.Price, tt.AvailableQuantity,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}
