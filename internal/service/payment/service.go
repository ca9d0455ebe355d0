package payment

import (
	"context"
	"encoding/json"
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
	"github.com/okozachenko/starbook/internal/service/notify"
	"github.com/okozachenko/starbook/internal/uow"
)

// TicketIssuer issues tickets for a confirmed booking. Satisfied by the
// ticketing service; an interface here keeps the packages acyclic.
type TicketIssuer interface {
	Issue(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) ([]domain.Ticket, error)
}

const idemLockTTL = 30 * time.Second

type Service struct {
	store   *postgresrepo.Store
	cache   *redisrepo.Cache
	pubsub  *redisx.InventoryPubSub
	idem    *redisrepo.IdempotencyStore
	gateway Gateway
	issuer  TicketIssuer
	mailer  notify.Mailer
	uow     *uow.UoW
	log     *slog.Logger
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.InventoryPubSub,
	idem *redisrepo.IdempotencyStore,
	gateway Gateway,
	issuer TicketIssuer,
	mailer notify.Mailer,
	log *slog.Logger,
) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		idem:    idem,
		gateway: gateway,
		issuer:  issuer,
		mailer:  mailer,
		uow:     uow.NewUoW(store),
		log:     log,
	}
}

type ConfirmInput struct {
	BookingID      uuid.UUID
	TransactionID  string
	Amount         decimal.Decimal
	Method         domain.PaymentMethod
	CardLast4      string
	IdempotencyKey string
}

type Result struct {
	BookingID     uuid.UUID            `json:"booking_id"`
	Reference     string               `json:"reference"`
	Status        domain.BookingStatus `json:"status"`
	TransactionID string               `json:"transaction_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Duplicate     bool                 `json:"duplicate"`
}

// Confirm applies a successful gateway transaction to a booking. The whole
// step is one transaction under the booking row lock: inventory decrements,
// discount usage, the payment row and the status flip commit together or
// not at all. A booking that is already Confirmed is reported as a
// duplicate, not an error. When an idempotency key is supplied, retries
// replay the stored result instead of re-running the transaction.
//
// Returns:
//   - error: payment.ErrBookingNotFound, payment.ErrAccessDenied.
//   - error: payment.ErrInvalidBookingState for Cancelled/Completed bookings.
//   - error: payment.ErrAmountMismatch when amount != the booking's final
//     amount.
//   - error: payment.ErrNotEnoughAvailable when any line item cannot bind
//     its quantity.
//   - error: payment.ErrDiscountExhausted, payment.ErrDuplicateTxn.
//   - error: payment.ErrConfirmInFlight while a retry races the original.
func (s *Service) Confirm(ctx context.Context, actor domain.Actor, in ConfirmInput) (*Result, error) {
	const op = "service.payment.Confirm"

	if in.TransactionID == "" {
		return nil, fmt.Errorf("%s: missing transaction id", op)
	}

	var idemKey string
	if in.IdempotencyKey != "" && s.idem != nil {
		idemKey = redisrepo.KeyIdemConfirm(in.BookingID.String(), in.IdempotencyKey)

		if res, ok := s.replayStored(ctx, idemKey); ok {
			return res, nil
		}

		acquired, err := s.idem.AcquireLock(ctx, idemKey, idemLockTTL)
		if err != nil {
			s.log.WarnContext(ctx, "idempotency store unavailable", slog.Any("error", err))
			idemKey = ""
		} else if !acquired {
			if res, ok := s.replayStored(ctx, idemKey); ok {
				return res, nil
			}

			return nil, fmt.Errorf("%s:%w", op, ErrConfirmInFlight)
		}
	}

	res, err := s.confirmTx(ctx, actor, in)

	if idemKey != "" {
		if err != nil {
			_ = s.idem.Release(ctx, idemKey)
		} else if b, mErr := json.Marshal(res); mErr == nil {
			_ = s.idem.SaveResult(ctx, idemKey, string(b))
		}
	}

	if err != nil {
		monitoring.TrackPaymentConfirmation(outcomeOf(err))
		return nil, err
	}

	if res.Duplicate {
		monitoring.TrackPaymentConfirmation("duplicate")
	} else {
		monitoring.TrackPaymentConfirmation("confirmed")
	}

	return res, nil
}

func (s *Service) confirmTx(ctx context.Context, actor domain.Actor, in ConfirmInput) (*Result, error) {
	const op = "service.payment.Confirm"

	var res Result

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		b, err := s.store.Bookings().With(tx).GetForUpdate(ctx, in.BookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		if !actor.CanAccessBooking(b.Booking.CustomerID) {
			return fmt.Errorf("%s:%w", op, ErrAccessDenied)
		}

		res = Result{
			BookingID:     b.Booking.ID,
			Reference:     b.Booking.Reference,
			Status:        b.Booking.Status,
			TransactionID: in.TransactionID,
			Amount:        b.Booking.FinalAmount,
		}

		if b.Booking.Status == domain.BookingConfirmed {
			res.Duplicate = true
			return nil
		}

		if b.Booking.Status != domain.BookingPending {
			return fmt.Errorf("%s:%w", op, ErrInvalidBookingState)
		}

		if !in.Amount.Equal(b.Booking.FinalAmount) {
			return fmt.Errorf("%s:%w (expected %s, got %s)",
				op, ErrAmountMismatch, b.Booking.FinalAmount, in.Amount)
		}

		// the binding step: each decrement checks and mutates in one
		// statement, so a loser here rolls the whole confirmation back
		for _, it := range b.Items {
			if err := s.store.Inventory().With(tx).Reserve(ctx, it.TicketTypeID, it.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientQuantity) {
					return fmt.Errorf("%s:%w", op, ErrNotEnoughAvailable)
				}

				return fmt.Errorf("%s:%w", op, err)
			}
		}

		if b.Booking.DiscountID != nil {
			if err := s.store.Discounts().With(tx).ConsumeUsage(ctx, *b.Booking.DiscountID); err != nil {
				if errors.Is(err, repository.ErrDiscountExhausted) {
					return fmt.Errorf("%s:%w", op, ErrDiscountExhausted)
				}

				return fmt.Errorf("%s:%w", op, err)
			}
		}

		p := domain.Payment{
			ID:            uuid.New(),
			BookingID:     b.Booking.ID,
			TransactionID: in.TransactionID,
			Amount:        in.Amount,
			Method:        in.Method,
			Status:        domain.PaymentSuccess,
			CardLast4:     in.CardLast4,
			PaidAt:        time.Now().UTC(),
		}
		if err := s.store.Payments().With(tx).Insert(ctx, p); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrDuplicateTxn)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		if err := s.store.Bookings().With(tx).SetStatus(
			ctx, b.Booking.ID, domain.BookingPending, domain.BookingConfirmed,
		); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		res.Status = domain.BookingConfirmed

		eventID := b.Booking.EventID
		after(func(ctx context.Context) {
			_ = s.cache.InvalidateEvent(ctx, eventID)
			_ = s.pubsub.PublishInventoryChanged(ctx, eventID)
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}

// Process runs the full payment flow for a booking: tokenize the card,
// charge the booking's final amount, confirm the booking with the gateway's
// transaction id, then issue tickets and send the confirmation mail. The
// trailing steps are best-effort; tickets can always be issued again via
// the issuance endpoint.
//
// Returns:
//   - error: payment.ErrInvalidCard, payment.ErrCardDeclined.
//   - error: everything Confirm can return.
func (s *Service) Process(
	ctx context.Context,
	actor domain.Actor,
	bookingID uuid.UUID,
	card CardFacts,
	method domain.PaymentMethod,
) (*Result, []domain.Ticket, error) {
	const op = "service.payment.Process"

	b, err := s.store.Bookings().Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, nil, fmt.Errorf("%s:%w", op, err)
	}

	if !actor.CanAccessBooking(b.Booking.CustomerID) {
		return nil, nil, fmt.Errorf("%s:%w", op, ErrAccessDenied)
	}

	if b.Booking.Status != domain.BookingPending {
		return nil, nil, fmt.Errorf("%s:%w", op, ErrInvalidBookingState)
	}

	token, err := s.gateway.Tokenize(ctx, card)
	if err != nil {
		return nil, nil, fmt.Errorf("%s:%w", op, err)
	}

	start := time.Now()
	charge, err := s.gateway.Charge(ctx, token, b.Booking.FinalAmount)
	monitoring.TrackGatewayCharge(time.Since(start))
	if err != nil {
		s.recordFailedPayment(ctx, b.Booking, token, method)
		return nil, nil, fmt.Errorf("%s:%w", op, err)
	}

	res, err := s.Confirm(ctx, actor, ConfirmInput{
		BookingID:     bookingID,
		TransactionID: charge.TransactionID,
		Amount:        b.Booking.FinalAmount,
		Method:        method,
		CardLast4:     token.Last4,
	})
	if err != nil {
		return nil, nil, err
	}

	tickets, err := s.issuer.Issue(ctx, actor, bookingID)
	if err != nil {
		s.log.ErrorContext(ctx, "ticket issuance after payment failed",
			slog.String("booking_id", bookingID.String()),
			slog.Any("error", err),
		)
		return res, nil, nil
	}

	s.sendConfirmationMail(ctx, b, tickets)

	return res, tickets, nil
}

func (s *Service) replayStored(ctx context.Context, idemKey string) (*Result, bool) {
	stored, ok, err := s.idem.GetResult(ctx, idemKey)
	if err != nil || !ok {
		return nil, false
	}

	var res Result
	if err := json.Unmarshal([]byte(stored), &res); err != nil {
		return nil, false
	}

	res.Duplicate = true
	return &res, true
}

// recordFailedPayment keeps a trace of declined charges. Best-effort; a
// failed insert only gets logged.
func (s *Service) recordFailedPayment(
	ctx context.Context,
	b domain.Booking,
	token Token,
	method domain.PaymentMethod,
) {
	p := domain.Payment{
		ID:            uuid.New(),
		BookingID:     b.ID,
		TransactionID: "declined-" + uuid.New().String(),
		Amount:        b.FinalAmount,
		Method:        method,
		Status:        domain.PaymentFailed,
		CardLast4:     token.Last4,
		PaidAt:        time.Now().UTC(),
	}
	if err := s.store.Payments().Insert(ctx, p); err != nil {
		s.log.WarnContext(ctx, "could not record failed payment",
			slog.String("booking_id", b.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *Service) sendConfirmationMail(
	ctx context.Context,
	b *domain.BookingWithItems,
	tickets []domain.Ticket,
) {
	user, err := s.store.Users().Get(ctx, b.Booking.CustomerID)
	if err != nil {
		s.log.WarnContext(ctx, "could not load customer for confirmation mail",
			slog.Int64("customer_id", b.Booking.CustomerID),
			slog.Any("error", err),
		)
		return
	}

	numbers := make([]string, 0, len(tickets))
	for _, t := range tickets {
		numbers = append(numbers, t.Number)
	}

	mail := notify.ConfirmationMail{
		BookingReference: b.Booking.Reference,
		EventName:        b.EventName,
		TicketNumbers:    numbers,
		FinalAmount:      b.Booking.FinalAmount.StringFixed(2),
	}
	if err := s.mailer.SendBookingConfirmation(ctx, user.Email, mail); err != nil {
		s.log.WarnContext(ctx, "confirmation mail failed",
			slog.String("booking_reference", b.Booking.Reference),
			slog.Any("error", err),
		)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotEnoughAvailable):
		monitoring.TrackOversellRejection()
		return "insufficient"
	case errors.Is(err, ErrAmountMismatch):
		return "mismatch"
	case errors.Is(err, ErrInvalidBookingState), errors.Is(err, ErrDuplicateTxn):
		return "rejected"
	default:
		return "error"
	}
}
