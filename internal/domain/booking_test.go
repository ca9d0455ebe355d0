package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		ok       bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingCompleted, false},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingPending, false},
		{BookingCancelled, BookingPending, false},
		{BookingCancelled, BookingConfirmed, false},
		{BookingCompleted, BookingCancelled, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}

	assert.True(t, BookingCancelled.Terminal())
	assert.True(t, BookingCompleted.Terminal())
	assert.False(t, BookingPending.Terminal())
	assert.False(t, BookingConfirmed.Terminal())
}

func TestValidateLineItemRequests(t *testing.T) {
	err := ValidateLineItemRequests(nil, 10)
	assert.Error(t, err)

	err = ValidateLineItemRequests([]LineItemRequest{{TicketTypeID: 1, Quantity: 0}}, 10)
	assert.Error(t, err)

	err = ValidateLineItemRequests([]LineItemRequest{
		{TicketTypeID: 1, Quantity: 2},
		{TicketTypeID: 1, Quantity: 3},
	}, 10)
	assert.Error(t, err, "duplicate ticket type")

	err = ValidateLineItemRequests([]LineItemRequest{
		{TicketTypeID: 1, Quantity: 6},
		{TicketTypeID: 2, Quantity: 5},
	}, 10)
	assert.Error(t, err, "cap exceeded")

	err = ValidateLineItemRequests([]LineItemRequest{
		{TicketTypeID: 1, Quantity: 6},
		{TicketTypeID: 2, Quantity: 4},
	}, 10)
	assert.NoError(t, err)
}

func TestPriceLineItems(t *testing.T) {
	types := map[int64]TicketType{
		1: {ID: 1, Name: "VIP", Price: decimal.RequireFromString("15000.00")},
		2: {ID: 2, Name: "Regular", Price: decimal.RequireFromString("5000.00")},
	}

	items, total, err := PriceLineItems([]LineItemRequest{
		{TicketTypeID: 1, Quantity: 2},
		{TicketTypeID: 2, Quantity: 3},
	}, types)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.True(t, items[0].Subtotal.Equal(decimal.RequireFromString("30000.00")))
	assert.True(t, items[1].Subtotal.Equal(decimal.RequireFromString("15000.00")))
	assert.True(t, total.Equal(decimal.RequireFromString("45000.00")))

	_, _, err = PriceLineItems([]LineItemRequest{{TicketTypeID: 9, Quantity: 1}}, types)
	assert.Error(t, err)
}

func TestFinalAmount(t *testing.T) {
	total := decimal.RequireFromString("100.00")

	assert.True(t, FinalAmount(total, decimal.Zero).Equal(total))
	assert.True(t, FinalAmount(total, decimal.RequireFromString("30.00")).
		Equal(decimal.RequireFromString("70.00")))
	// never negative
	assert.True(t, FinalAmount(total, decimal.RequireFromString("150.00")).IsZero())
}

func TestNewBookingReference(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 30, 45, 0, time.UTC)

	ref := NewBookingReference(now)
	assert.True(t, strings.HasPrefix(ref, "BK20250101123045"))
	assert.Len(t, ref, len("BK20250101123045")+5)

	// random suffix keeps same-instant references distinct
	other := NewBookingReference(now)
	assert.NotEqual(t, ref, other)
}

func TestDiscountUsableAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	max := 2

	d := Discount{
		Code:       "SUMMER",
		Kind:       DiscountPercentage,
		Percentage: decimal.NewFromInt(10),
		ValidFrom:  now.AddDate(0, -1, 0),
		ValidTo:    now.AddDate(0, 1, 0),
		IsActive:   true,
	}
	assert.True(t, d.UsableAt(now))

	inactive := d
	inactive.IsActive = false
	assert.False(t, inactive.UsableAt(now))

	expired := d
	expired.ValidTo = now.AddDate(0, 0, -1)
	assert.False(t, expired.UsableAt(now))

	exhausted := d
	exhausted.MaxUsageCount = &max
	exhausted.CurrentUsageCount = 2
	assert.False(t, exhausted.UsableAt(now))

	remaining := d
	remaining.MaxUsageCount = &max
	remaining.CurrentUsageCount = 1
	assert.True(t, remaining.UsableAt(now))
}

func TestDiscountApplyTo(t *testing.T) {
	total := decimal.RequireFromString("200.00")

	pct := Discount{Kind: DiscountPercentage, Percentage: decimal.NewFromInt(25)}
	assert.True(t, pct.ApplyTo(total).Equal(decimal.RequireFromString("50.00")))

	flat := Discount{Kind: DiscountFixed, Amount: decimal.RequireFromString("30.00")}
	assert.True(t, flat.ApplyTo(total).Equal(decimal.RequireFromString("30.00")))

	// never more than the total
	big := Discount{Kind: DiscountFixed, Amount: decimal.RequireFromString("500.00")}
	assert.True(t, big.ApplyTo(total).Equal(total))
}

func TestActorAccess(t *testing.T) {
	customer := Actor{UserID: 7, Role: RoleCustomer}
	assert.True(t, customer.CanAccessBooking(7))
	assert.False(t, customer.CanAccessBooking(8))

	admin := Actor{UserID: 1, Role: RoleAdmin}
	assert.True(t, admin.CanAccessBooking(8))
	assert.True(t, admin.IsStaff())

	organizer := Actor{UserID: 2, Role: RoleOrganizer}
	assert.True(t, organizer.IsStaff())
	assert.False(t, customer.IsStaff())
}
