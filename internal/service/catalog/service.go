package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okozachenko/starbook/internal/domain"
	"github.com/okozachenko/starbook/internal/repository"
	postgresrepo "github.com/okozachenko/starbook/internal/repository/postgres"
	redisrepo "github.com/okozachenko/starbook/internal/repository/redis"
	"github.com/okozachenko/starbook/internal/uow"
)

type Config struct {
	EventSummaryTTL time.Duration
	AvailabilityTTL time.Duration
	DefaultPage     int
	MaxPage         int
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	uow   *uow.UoW
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.EventSummaryTTL <= 0 {
		cfg.EventSummaryTTL = 60 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	if cfg.DefaultPage <= 0 {
		cfg.DefaultPage = 50
	}

	if cfg.MaxPage <= 0 {
		cfg.MaxPage = 200
	}

	return &Service{
		store: store,
		cache: cache,
		uow:   uow.NewUoW(store),
		cfg:   cfg,
	}
}

// GetEvent retrieves an event by its ID, utilizing a caching layer to
// improve performance.
//
// Returns:
//   - error: catalog.ErrEventNotFound if the event is not found.
func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.catalog.GetEvent"

	key := redisrepo.KeyEventSummary(id)

	event, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.EventSummaryTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.store.Catalog().GetEvent(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, ErrEventNotFound
				}

				return domain.Event{}, err
			}

			return *e, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &event, nil
}

// Availability returns an event together with the remaining quantity per
// ticket type. The short cache TTL makes this an advisory read: the number
// shown can be stale by a few seconds, only confirmation binds inventory.
//
// Returns:
//   - error: catalog.ErrEventNotFound if the event is not found.
func (s *Service) Availability(ctx context.Context, eventID int64) (*domain.EventWithTicketTypes, error) {
	const op = "service.catalog.Availability"

	key := redisrepo.KeyEventAvailability(eventID)

	out, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.EventWithTicketTypes, error) {
			e, err := s.store.Catalog().GetEvent(ctx, eventID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.EventWithTicketTypes{}, ErrEventNotFound
				}

				return domain.EventWithTicketTypes{}, err
			}

			types, err := s.store.Catalog().ListTicketTypes(ctx, eventID)
			if err != nil {
				return domain.EventWithTicketTypes{}, err
			}

			return domain.EventWithTicketTypes{
				Event:       *e,
				TicketTypes: types,
			}, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

// ListEvents returns active, published events with pagination.
func (s *Service) ListEvents(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	const op = "service.catalog.ListEvents"

	if limit <= 0 {
		limit = s.cfg.DefaultPage
	}

	if limit > s.cfg.MaxPage {
		limit = s.cfg.MaxPage
	}

	if offset < 0 {
		offset = 0
	}

	events, err := s.store.Catalog().ListPublishedEvents(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return events, nil
}

// CreateEvent creates an event with its ticket types in one transaction.
// Only staff actors may create events; organizers own what they create.
//
// Returns:
//   - error: catalog.ErrAccessDenied if the actor is not staff.
//   - error: catalog.ErrEventConflict on a duplicate event.
func (s *Service) CreateEvent(
	ctx context.Context,
	actor domain.Actor,
	e domain.Event,
	types []domain.TicketType,
) (int64, error) {
	const op = "service.catalog.CreateEvent"

	if !actor.IsStaff() {
		return 0, fmt.Errorf("%s:%w", op, ErrAccessDenied)
	}

	if e.Name == "" || !e.Ends.After(e.Starts) {
		return 0, fmt.Errorf("%s:%w", op, ErrInvalidEvent)
	}

	for _, tt := range types {
		if tt.Price.IsNegative() || tt.AvailableQuantity < 0 {
			return 0, fmt.Errorf("%s:%w", op, ErrInvalidPricing)
		}
	}

	if actor.Role == domain.RoleOrganizer {
		e.OrganizerID = actor.UserID
	}

	var eventID int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		id, err := s.store.Catalog().With(tx).CreateEvent(ctx, e)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrEventConflict)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		eventID = id

		for _, tt := range types {
			tt.EventID = id
			if _, err := s.store.Catalog().With(tx).CreateTicketType(ctx, tt); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateEvent(ctx, eventID)
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	return eventID, nil
}

// AddTicketType adds a ticket type to an existing event. Organizers may only
// modify their own events.
//
// Returns:
//   - error: catalog.ErrEventNotFound if the event is not found.
//   - error: catalog.ErrAccessDenied if the actor may not modify the event.
func (s *Service) AddTicketType(
	ctx context.Context,
	actor domain.Actor,
	tt domain.TicketType,
) (int64, error) {
	const op = "service.catalog.AddTicketType"

	if !actor.IsStaff() {
		return 0, fmt.Errorf("%s:%w", op, ErrAccessDenied)
	}

	if tt.Price.IsNegative() || tt.AvailableQuantity < 0 {
		return 0, fmt.Errorf("%s:%w", op, ErrInvalidPricing)
	}

	var typeID int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		e, err := s.store.Catalog().With(tx).GetEvent(ctx, tt.EventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrEventNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		if actor.Role == domain.RoleOrganizer && e.OrganizerID != actor.UserID {
			return fmt.Errorf("%s:%w", op, ErrAccessDenied)
		}

		id, err := s.store.Catalog().With(tx).CreateTicketType(ctx, tt)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		typeID = id

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateEvent(ctx, tt.EventID)
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	return typeID, nil
}

// CreateDiscount registers a discount code.
//
// Returns:
//   - error: catalog.ErrAccessDenied if the actor is not staff.
//   - error: catalog.ErrCodeConflict on a duplicate code.
func (s *Service) CreateDiscount(
	ctx context.Context,
	actor domain.Actor,
	d domain.Discount,
) (int64, error) {
	const op = "service.catalog.CreateDiscount"

	if !actor.IsStaff() {
		return 0, fmt.Errorf("%s:%w", op, ErrAccessDenied)
	}

	id, err := s.store.Discounts().Create(ctx, d)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s:%w", op, ErrCodeConflict)
		}

		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}
