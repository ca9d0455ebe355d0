package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okozachenko/starbook/internal/domain"
	"github.com/okozachenko/starbook/internal/service/booking"
	"github.com/okozachenko/starbook/internal/testutil"
)

func TestCreateBooking_Postgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	customerID := testutil.InsertUser(t, ctx, pool, "alice@example.com", domain.RoleCustomer)
	eventID := testutil.InsertEvent(t, ctx, pool, "Spring Gala")
	gaID := testutil.InsertTicketType(t, ctx, pool, eventID, "GA", decimal.RequireFromString("100.00"), 10)
	vipID := testutil.InsertTicketType(t, ctx, pool, eventID, "VIP", decimal.RequireFromString("250.00"), 5)

	svcs := testutil.NewServices(pool)
	customer := domain.Actor{UserID: customerID, Role: domain.RoleCustomer}

	t.Run("prices line items and leaves inventory alone", func(t *testing.T) {
		b, err := svcs.Booking.Create(ctx, customer, eventID, []domain.LineItemRequest{
			{TicketTypeID: gaID, Quantity: 2},
			{TicketTypeID: vipID, Quantity: 1},
		}, "", "")
		require.NoError(t, err)

		assert.Equal(t, domain.BookingPending, b.Booking.Status)
		assert.True(t, b.Booking.TotalAmount.Equal(decimal.RequireFromString("450.00")),
			"total = %s", b.Booking.TotalAmount)
		assert.True(t, b.Booking.FinalAmount.Equal(b.Booking.TotalAmount))
		assert.Len(t, b.Items, 2)
		assert.Equal(t, 3, b.Units())
		assert.Regexp(t, `^BK\d{14}[2-9A-Z]{5}$`, b.Booking.Reference)

		// creation never decrements
		assert.Equal(t, 10, testutil.AvailableQuantity(t, ctx, pool, gaID))
		assert.Equal(t, 5, testutil.AvailableQuantity(t, ctx, pool, vipID))

		got, err := svcs.Booking.Get(ctx, customer, b.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, b.Booking.Reference, got.Booking.Reference)
		assert.Equal(t, "Spring Gala", got.EventName)
	})

	t.Run("strangers cannot read the booking", func(t *testing.T) {
		mine, err := svcs.Booking.ListMine(ctx, customer)
		require.NoError(t, err)
		require.NotEmpty(t, mine)

		other := domain.Actor{UserID: customerID + 100, Role: domain.RoleCustomer}
		_, err = svcs.Booking.Get(ctx, other, mine[0].ID)
		assert.ErrorIs(t, err, booking.ErrAccessDenied)
	})

	t.Run("rejects what it should", func(t *testing.T) {
		_, err := svcs.Booking.Create(ctx, customer, eventID+999, []domain.LineItemRequest{
			{TicketTypeID: gaID, Quantity: 1},
		}, "", "")
		assert.ErrorIs(t, err, booking.ErrEventNotFound)

		_, err = svcs.Booking.Create(ctx, customer, eventID, []domain.LineItemRequest{
			{TicketTypeID: gaID + 999, Quantity: 1},
		}, "", "")
		assert.ErrorIs(t, err, booking.ErrTicketTypeNotFound)

		_, err = svcs.Booking.Create(ctx, customer, eventID, []domain.LineItemRequest{
			{TicketTypeID: vipID, Quantity: 6},
		}, "", "")
		assert.ErrorIs(t, err, booking.ErrNotEnoughAvailable)

		var capErr booking.QuantityCapError
		_, err = svcs.Booking.Create(ctx, customer, eventID, []domain.LineItemRequest{
			{TicketTypeID: gaID, Quantity: 8},
			{TicketTypeID: vipID, Quantity: 3},
		}, "", "")
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, 11, capErr.Requested)

		_, err = svcs.Booking.Create(ctx, customer, eventID, []domain.LineItemRequest{
			{TicketTypeID: gaID, Quantity: 1},
			{TicketTypeID: gaID, Quantity: 1},
		}, "", "")
		assert.ErrorIs(t, err, booking.ErrInvalidRequest)
	})

	t.Run("applies a percentage discount at creation", func(t *testing.T) {
		testutil.InsertDiscount(t, ctx, pool, "SPRING10", domain.Discount{
			EventID:    &eventID,
			Kind:       domain.DiscountPercentage,
			Percentage: decimal.RequireFromString("10"),
			ValidFrom:  time.Now().Add(-time.Hour),
			ValidTo:    time.Now().Add(time.Hour),
			IsActive:   true,
		})

		b, err := svcs.Booking.Create(ctx, customer, eventID, []domain.LineItemRequest{
			{TicketTypeID: gaID, Quantity: 2},
		}, "SPRING10", "")
		require.NoError(t, err)

		assert.True(t, b.Booking.DiscountAmount.Equal(decimal.RequireFromString("20.00")),
			"discount = %s", b.Booking.DiscountAmount)
		assert.True(t, b.Booking.FinalAmount.Equal(decimal.RequireFromString("180.00")),
			"final = %s", b.Booking.FinalAmount)
		require.NotNil(t, b.Booking.DiscountID)

		_, err = svcs.Booking.Create(ctx, customer, eventID, []domain.LineItemRequest{
			{TicketTypeID: gaID, Quantity: 1},
		}, "NOPE", "")
		assert.ErrorIs(t, err, booking.ErrDiscountNotFound)
	})
}

func TestCancelBooking_Postgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	customerID := testutil.InsertUser(t, ctx, pool, "bob@example.com", domain.RoleCustomer)
	eventID := testutil.InsertEvent(t, ctx, pool, "Night Show")
	gaID := testutil.InsertTicketType(t, ctx, pool, eventID, "GA", decimal.RequireFromString("50.00"), 8)

	svcs := testutil.NewServices(pool)
	customer := domain.Actor{UserID: customerID, Role: domain.RoleCustomer}

	t.Run("pending cancellation never touches inventory", func(t *testing.T) {
		b, err := svcs.Booking.Create(ctx, customer, eventID, []domain.LineItemRequest{
			{TicketTypeID: gaID, Quantity: 3},
		}, "", "")
		require.NoError(t, err)

		require.NoError(t, svcs.Booking.Cancel(ctx, customer, b.Booking.ID))
		assert.Equal(t, 8, testutil.AvailableQuantity(t, ctx, pool, gaID))

		got, err := svcs.Booking.Get(ctx, customer, b.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingCancelled, got.Booking.Status)

		// terminal: a second cancel is rejected
		err = svcs.Booking.Cancel(ctx, customer, b.Booking.ID)
		assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	})

	t.Run("only the owner or staff may cancel", func(t *testing.T) {
		b, err := svcs.Booking.Create(ctx, customer, eventID, []domain.LineItemRequest{
			{TicketTypeID: gaID, Quantity: 1},
		}, "", "")
		require.NoError(t, err)

		other := domain.Actor{UserID: customerID + 100, Role: domain.RoleCustomer}
		err = svcs.Booking.Cancel(ctx, other, b.Booking.ID)
		assert.ErrorIs(t, err, booking.ErrAccessDenied)

		staff := domain.Actor{UserID: customerID + 100, Role: domain.RoleAdmin}
		require.NoError(t, svcs.Booking.Cancel(ctx, staff, b.Booking.ID))
	})
}
