package payment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okozachenko/starbook/internal/domain"
	"github.com/okozachenko/starbook/internal/service"
	"github.com/okozachenko/starbook/internal/service/payment"
	"github.com/okozachenko/starbook/internal/testutil"
)

func confirmInput(b *domain.BookingWithItems, txn string) payment.ConfirmInput {
	return payment.ConfirmInput{
		BookingID:     b.Booking.ID,
		TransactionID: txn,
		Amount:        b.Booking.FinalAmount,
		Method:        domain.MethodCreditCard,
	}
}

func createBooking(
	t *testing.T,
	ctx context.Context,
	svcs *service.Services,
	actor domain.Actor,
	eventID, typeID int64,
	qty int,
	code string,
) *domain.BookingWithItems {
	t.Helper()
	b, err := svcs.Booking.Create(ctx, actor, eventID, []domain.LineItemRequest{
		{TicketTypeID: typeID, Quantity: qty},
	}, code, "")
	require.NoError(t, err)
	return b
}

func TestConfirmPayment_Postgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	aliceID := testutil.InsertUser(t, ctx, pool, "alice@example.com", domain.RoleCustomer)
	bobID := testutil.InsertUser(t, ctx, pool, "bob@example.com", domain.RoleCustomer)
	eventID := testutil.InsertEvent(t, ctx, pool, "Arena Night")
	gaID := testutil.InsertTicketType(t, ctx, pool, eventID, "GA", decimal.RequireFromString("100.00"), 5)

	svcs := testutil.NewServices(pool)
	alice := domain.Actor{UserID: aliceID, Role: domain.RoleCustomer}
	bob := domain.Actor{UserID: bobID, Role: domain.RoleCustomer}

	t.Run("two bookings race for the last seats, exactly one wins", func(t *testing.T) {
		// both bookings pass the advisory check while 5 remain
		b1 := createBooking(t, ctx, svcs, alice, eventID, gaID, 3, "")
		b2 := createBooking(t, ctx, svcs, bob, eventID, gaID, 3, "")

		var wg sync.WaitGroup
		errs := make([]error, 2)

		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = svcs.Payment.Confirm(ctx, alice, confirmInput(b1, "txn-alice"))
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = svcs.Payment.Confirm(ctx, bob, confirmInput(b2, "txn-bob"))
		}()
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, payment.ErrNotEnoughAvailable)
			}
		}
		assert.Equal(t, 1, winners, "exactly one confirmation must bind the seats")
		assert.Equal(t, 2, testutil.AvailableQuantity(t, ctx, pool, gaID))

		// the loser's booking is untouched and still payable later
		var loser *domain.BookingWithItems
		var loserActor domain.Actor
		if errs[0] != nil {
			loser, loserActor = b1, alice
		} else {
			loser, loserActor = b2, bob
		}
		got, err := svcs.Booking.Get(ctx, loserActor, loser.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingPending, got.Booking.Status)
	})

	t.Run("re-confirming a confirmed booking is a duplicate no-op", func(t *testing.T) {
		var winner *domain.BookingWithItems
		var actor domain.Actor
		var txn string

		mineAlice, err := svcs.Booking.ListMine(ctx, alice)
		require.NoError(t, err)
		if mineAlice[0].Status == domain.BookingConfirmed {
			b, err := svcs.Booking.Get(ctx, alice, mineAlice[0].ID)
			require.NoError(t, err)
			winner, actor, txn = b, alice, "txn-alice"
		} else {
			mineBob, err := svcs.Booking.ListMine(ctx, bob)
			require.NoError(t, err)
			b, err := svcs.Booking.Get(ctx, bob, mineBob[0].ID)
			require.NoError(t, err)
			winner, actor, txn = b, bob, "txn-bob"
		}

		before := testutil.AvailableQuantity(t, ctx, pool, gaID)
		res, err := svcs.Payment.Confirm(ctx, actor, confirmInput(winner, txn))
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Equal(t, domain.BookingConfirmed, res.Status)
		assert.Equal(t, before, testutil.AvailableQuantity(t, ctx, pool, gaID),
			"duplicate confirmation must not decrement again")
	})

	t.Run("amount mismatch is a hard failure that changes nothing", func(t *testing.T) {
		b := createBooking(t, ctx, svcs, alice, eventID, gaID, 2, "")

		in := confirmInput(b, "txn-mismatch")
		in.Amount = b.Booking.FinalAmount.Sub(decimal.NewFromInt(1))
		_, err := svcs.Payment.Confirm(ctx, alice, in)
		assert.ErrorIs(t, err, payment.ErrAmountMismatch)

		assert.Equal(t, 2, testutil.AvailableQuantity(t, ctx, pool, gaID))
		got, err := svcs.Booking.Get(ctx, alice, b.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingPending, got.Booking.Status)

		// the right amount still goes through afterwards
		res, err := svcs.Payment.Confirm(ctx, alice, confirmInput(b, "txn-right"))
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
		assert.Equal(t, 0, testutil.AvailableQuantity(t, ctx, pool, gaID))
	})

	t.Run("cancelling a confirmed booking releases and refunds", func(t *testing.T) {
		mine, err := svcs.Booking.ListMine(ctx, alice)
		require.NoError(t, err)

		var confirmed *domain.Booking
		for i := range mine {
			if mine[i].Status == domain.BookingConfirmed {
				confirmed = &mine[i]
				break
			}
		}
		require.NotNil(t, confirmed)

		units := 0
		b, err := svcs.Booking.Get(ctx, alice, confirmed.ID)
		require.NoError(t, err)
		units = b.Units()

		before := testutil.AvailableQuantity(t, ctx, pool, gaID)
		require.NoError(t, svcs.Booking.Cancel(ctx, alice, confirmed.ID))
		assert.Equal(t, before+units, testutil.AvailableQuantity(t, ctx, pool, gaID))

		var status string
		err = pool.QueryRow(ctx,
			`SELECT status FROM payments WHERE booking_id = $1 AND status != 'failed' ORDER BY paid_at DESC LIMIT 1`,
			confirmed.ID,
		).Scan(&status)
		require.NoError(t, err)
		assert.Equal(t, string(domain.PaymentRefunded), status)
	})
}

func TestConfirmPayment_Discounts_Postgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	aliceID := testutil.InsertUser(t, ctx, pool, "alice@example.com", domain.RoleCustomer)
	eventID := testutil.InsertEvent(t, ctx, pool, "Limited Run")
	gaID := testutil.InsertTicketType(t, ctx, pool, eventID, "GA", decimal.RequireFromString("80.00"), 10)

	one := 1
	testutil.InsertDiscount(t, ctx, pool, "ONEUSE", domain.Discount{
		EventID:       &eventID,
		Kind:          domain.DiscountFixed,
		Amount:        decimal.RequireFromString("10.00"),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		MaxUsageCount: &one,
		IsActive:      true,
	})

	svcs := testutil.NewServices(pool)
	alice := domain.Actor{UserID: aliceID, Role: domain.RoleCustomer}

	// two pending bookings share the single-use code; only the first
	// confirmation gets to consume it
	b1 := createBooking(t, ctx, svcs, alice, eventID, gaID, 1, "ONEUSE")
	b2 := createBooking(t, ctx, svcs, alice, eventID, gaID, 1, "ONEUSE")

	_, err := svcs.Payment.Confirm(ctx, alice, confirmInput(b1, "txn-1"))
	require.NoError(t, err)

	_, err = svcs.Payment.Confirm(ctx, alice, confirmInput(b2, "txn-2"))
	assert.ErrorIs(t, err, payment.ErrDiscountExhausted)

	// the failed confirmation rolled its decrement back
	assert.Equal(t, 9, testutil.AvailableQuantity(t, ctx, pool, gaID))
}
