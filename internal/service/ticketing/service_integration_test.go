package ticketing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okozachenko/starbook/internal/domain"
	"github.com/okozachenko/starbook/internal/service/payment"
	"github.com/okozachenko/starbook/internal/service/ticketing"
	"github.com/okozachenko/starbook/internal/testutil"
)

func TestIssueTickets_Postgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	aliceID := testutil.InsertUser(t, ctx, pool, "alice@example.com", domain.RoleCustomer)
	eventID := testutil.InsertEvent(t, ctx, pool, "Gala; Act II")
	gaID := testutil.InsertTicketType(t, ctx, pool, eventID, "GA", decimal.RequireFromString("60.00"), 10)
	vipID := testutil.InsertTicketType(t, ctx, pool, eventID, "VIP", decimal.RequireFromString("120.00"), 5)

	svcs := testutil.NewServices(pool)
	alice := domain.Actor{UserID: aliceID, Role: domain.RoleCustomer}
	staff := domain.Actor{UserID: aliceID + 100, Role: domain.RoleAdmin}

	b, err := svcs.Booking.Create(ctx, alice, eventID, []domain.LineItemRequest{
		{TicketTypeID: gaID, Quantity: 2},
		{TicketTypeID: vipID, Quantity: 1},
	}, "", "")
	require.NoError(t, err)

	t.Run("refuses to issue for a pending booking", func(t *testing.T) {
		_, err := svcs.Ticketing.Issue(ctx, alice, b.Booking.ID)
		assert.ErrorIs(t, err, ticketing.ErrBookingNotConfirmed)
	})

	_, err = svcs.Payment.Confirm(ctx, alice, payment.ConfirmInput{
		BookingID:     b.Booking.ID,
		TransactionID: "txn-issue",
		Amount:        b.Booking.FinalAmount,
		Method:        domain.MethodCreditCard,
	})
	require.NoError(t, err)

	var firstRun []domain.Ticket

	t.Run("issues one numbered ticket per unit", func(t *testing.T) {
		tickets, err := svcs.Ticketing.Issue(ctx, alice, b.Booking.ID)
		require.NoError(t, err)
		require.Len(t, tickets, 3)
		firstRun = tickets

		ref := b.Booking.Reference
		assert.Equal(t, ref+"-0001", tickets[0].Number)
		assert.Equal(t, ref+"-0002", tickets[1].Number)
		assert.Equal(t, ref+"-0003", tickets[2].Number)

		for _, tk := range tickets {
			assert.NotEmpty(t, tk.QRPNG)

			p, err := ticketing.DecodePayload(tk.Payload)
			require.NoError(t, err)
			assert.Equal(t, tk.Number, p.TicketNumber)
			assert.Equal(t, ref, p.BookingReference)
			// the separator in the event name was sanitized away
			assert.Equal(t, "Gala, Act II", p.EventName)
		}
	})

	t.Run("issuing again returns the same set", func(t *testing.T) {
		tickets, err := svcs.Ticketing.Issue(ctx, alice, b.Booking.ID)
		require.NoError(t, err)
		require.Len(t, tickets, 3)

		for i := range tickets {
			assert.Equal(t, firstRun[i].Number, tickets[i].Number)
			assert.Equal(t, firstRun[i].ID, tickets[i].ID)
		}
	})

	t.Run("verification round-trips through the stored ticket", func(t *testing.T) {
		tk, err := svcs.Ticketing.Verify(ctx, staff, firstRun[0].Payload)
		require.NoError(t, err)
		assert.Equal(t, firstRun[0].ID, tk.ID)

		// customers cannot run door scans
		_, err = svcs.Ticketing.Verify(ctx, alice, firstRun[0].Payload)
		assert.ErrorIs(t, err, ticketing.ErrAccessDenied)

		_, err = svcs.Ticketing.Verify(ctx, staff, "garbage")
		assert.ErrorIs(t, err, ticketing.ErrBadPayload)
	})

	t.Run("renders a pdf from stored fields", func(t *testing.T) {
		out, err := svcs.Ticketing.PDF(ctx, alice, firstRun[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "%PDF", string(out[:4]))
	})
}
