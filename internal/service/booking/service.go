package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okozachenko/starbook/internal/domain"
	"github.com/okozachenko/starbook/internal/monitoring"
	redisx "github.com/okozachenko/starbook/internal/redis"
	"github.com/okozachenko/starbook/internal/repository"
	postgresrepo "github.com/okozachenko/starbook/internal/repository/postgres"
	redisrepo "github.com/okozachenko/starbook/internal/repository/redis"
	"github.com/okozachenko/starbook/internal/uow"
)

type Config struct {
	// MaxUnitsPerBooking caps the total ticket units in one request.
	MaxUnitsPerBooking int
}

type Service struct {
	store   *postgresrepo.Store
	cache   *redisrepo.Cache
	pubsub  *redisx.InventoryPubSub
	limiter *redisrepo.SlidingWindowLimiter
	uow     *uow.UoW
	log     *slog.Logger
	cfg     Config
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.InventoryPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	log *slog.Logger,
	cfg Config,
) *Service {
	if cfg.MaxUnitsPerBooking <= 0 {
		cfg.MaxUnitsPerBooking = 10
	}

	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		uow:     uow.NewUoW(store),
		log:     log,
		cfg:     cfg,
	}
}

// Create builds a Pending booking for the actor: line items priced at the
// ticket types' current prices, total/discount/final amounts computed up
// front. Availability is checked against the current counters but NOT
// reserved; inventory only moves when the payment confirms.
//
// Returns:
//   - error: booking.ErrEventNotFound, booking.ErrEventNotOnSale.
//   - error: booking.ErrTicketTypeNotFound for an unknown or foreign type.
//   - error: booking.ErrNotEnoughAvailable on the advisory check.
//   - error: booking.QuantityCapError when units exceed the cap.
//   - error: booking.ErrDiscountNotFound / ErrDiscountNotUsable /
//     ErrDiscountWrongEvent for discount code problems.
//   - error: booking.ErrRateLimited.
func (s *Service) Create(
	ctx context.Context,
	actor domain.Actor,
	eventID int64,
	reqs []domain.LineItemRequest,
	discountCode string,
	rlKey string,
) (*domain.BookingWithItems, error) {
	const op = "service.booking.Create"

	if err := domain.ValidateLineItemRequests(reqs, 0); err != nil {
		return nil, fmt.Errorf("%s:%w: %s", op, ErrInvalidRequest, err)
	}

	units := 0
	for _, r := range reqs {
		units += r.Quantity
	}
	if units > s.cfg.MaxUnitsPerBooking {
		return nil, fmt.Errorf("%s: %w", op, QuantityCapError{
			Requested: units,
			Cap:       s.cfg.MaxUnitsPerBooking,
		})
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			// limiter trouble must not block bookings
			s.log.WarnContext(ctx, "rate limiter unavailable", slog.Any("error", err))
		} else if !ok {
			return nil, fmt.Errorf("%s: %w (retry in %s)", op, ErrRateLimited, retry)
		}
	}

	event, err := s.store.Catalog().GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !event.IsActive || !event.IsPublished {
		return nil, fmt.Errorf("%s:%w", op, ErrEventNotOnSale)
	}

	types, err := s.store.Catalog().ListTicketTypes(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	byID := make(map[int64]domain.TicketType, len(types))
	for _, tt := range types {
		byID[tt.ID] = tt
	}

	// advisory availability check against the current counters
	for _, r := range reqs {
		tt, ok := byID[r.TicketTypeID]
		if !ok {
			return nil, fmt.Errorf("%s:%w", op, ErrTicketTypeNotFound)
		}
		if tt.AvailableQuantity < r.Quantity {
			return nil, fmt.Errorf("%s:%w", op, ErrNotEnoughAvailable)
		}
	}

	items, total, err := domain.PriceLineItems(reqs, byID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrTicketTypeNotFound)
	}

	now := time.Now().UTC()

	discountAmount := decimal.Zero
	var discountID *int64
	if discountCode != "" {
		d, err := s.store.Discounts().GetByCode(ctx, discountCode)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%s:%w", op, ErrDiscountNotFound)
			}

			return nil, fmt.Errorf("%s:%w", op, err)
		}

		if d.EventID != nil && *d.EventID != eventID {
			return nil, fmt.Errorf("%s:%w", op, ErrDiscountWrongEvent)
		}

		if !d.UsableAt(now) {
			return nil, fmt.Errorf("%s:%w", op, ErrDiscountNotUsable)
		}

		discountAmount = d.ApplyTo(total)
		discountID = &d.ID
	}

	b := domain.Booking{
		ID:             uuid.New(),
		Reference:      domain.NewBookingReference(now),
		EventID:        eventID,
		CustomerID:     actor.UserID,
		Status:         domain.BookingPending,
		DiscountID:     discountID,
		TotalAmount:    total,
		DiscountAmount: discountAmount,
		FinalAmount:    domain.FinalAmount(total, discountAmount),
		BookedAt:       now,
	}

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		if err := s.store.Bookings().With(tx).Create(ctx, b, items); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			monitoring.TrackBookingCreated()
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &domain.BookingWithItems{
		Booking:   b,
		EventName: event.Name,
		Items:     items,
	}
	out.TypeNames = make(map[int64]string, len(items))
	for _, it := range items {
		out.TypeNames[it.TicketTypeID] = byID[it.TicketTypeID].Name
	}

	return out, nil
}

// Get loads a booking with its line items. Customers may only read their own
// bookings.
//
// Returns:
//   - error: booking.ErrBookingNotFound, booking.ErrAccessDenied.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.BookingWithItems, error) {
	const op = "service.booking.Get"

	b, err := s.store.Bookings().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !actor.CanAccessBooking(b.Booking.CustomerID) {
		return nil, fmt.Errorf("%s:%w", op, ErrAccessDenied)
	}

	return b, nil
}

// ListMine returns the actor's bookings, newest first.
func (s *Service) ListMine(ctx context.Context, actor domain.Actor) ([]domain.Booking, error) {
	const op = "service.booking.ListMine"

	bookings, err := s.store.Bookings().ListByCustomer(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return bookings, nil
}

// Cancel cancels a booking. From Pending it is a pure status flip: the
// booking never held inventory, so nothing is returned. From Confirmed it
// releases every line item quantity back to its ticket type and marks the
// successful payment refunded, all in the same transaction as the status
// flip. Cancelled and Completed bookings cannot be cancelled.
//
// Returns:
//   - error: booking.ErrBookingNotFound, booking.ErrAccessDenied.
//   - error: booking.ErrInvalidTransition when already terminal.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	const op = "service.booking.Cancel"

	return s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		b, err := s.store.Bookings().With(tx).GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		if !actor.CanAccessBooking(b.Booking.CustomerID) {
			return fmt.Errorf("%s:%w", op, ErrAccessDenied)
		}

		from := b.Booking.Status
		if !from.CanTransition(domain.BookingCancelled) {
			return fmt.Errorf("%s:%w", op, ErrInvalidTransition)
		}

		if from == domain.BookingConfirmed {
			for _, it := range b.Items {
				if err := s.store.Inventory().With(tx).Release(ctx, it.TicketTypeID, it.Quantity); err != nil {
					return fmt.Errorf("%s:%w", op, err)
				}
			}

			refunded, err := s.store.Payments().With(tx).MarkRefunded(ctx, id)
			if err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}
			if !refunded {
				s.log.WarnContext(ctx, "confirmed booking had no successful payment to refund",
					slog.String("booking_id", id.String()))
			}
		}

		if err := s.store.Bookings().With(tx).SetStatus(ctx, id, from, domain.BookingCancelled); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		eventID := b.Booking.EventID
		after(func(ctx context.Context) {
			monitoring.TrackBookingCancelled(string(from))
			if from == domain.BookingConfirmed {
				_ = s.cache.InvalidateEvent(ctx, eventID)
				_ = s.pubsub.PublishInventoryChanged(ctx, eventID)
			}
		})

		return nil
	})
}

// MarkCompleted moves a Confirmed booking to Completed, e.g. after the event
// has taken place. Staff only.
//
// Returns:
//   - error: booking.ErrBookingNotFound, booking.ErrAccessDenied.
//   - error: booking.ErrInvalidTransition when not Confirmed.
func (s *Service) MarkCompleted(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	const op = "service.booking.MarkCompleted"

	if !actor.IsStaff() {
		return fmt.Errorf("%s:%w", op, ErrAccessDenied)
	}

	err := s.store.Bookings().SetStatus(ctx, id, domain.BookingConfirmed, domain.BookingCompleted)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidStatus) {
			// distinguish missing from mis-stated
			if _, getErr := s.store.Bookings().Get(ctx, id); getErr != nil {
				if errors.Is(getErr, repository.ErrNotFound) {
					return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
				}
			}
			return fmt.Errorf("%s:%w", op, ErrInvalidTransition)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
