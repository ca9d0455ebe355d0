package ticketing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okozachenko/starbook/internal/domain"
)

func TestPlanNumbers(t *testing.T) {
	t.Run("fresh booking gets the full sequence", func(t *testing.T) {
		got := PlanNumbers("BK123", 0, 3)
		assert.Equal(t, []string{"BK123-0001", "BK123-0002", "BK123-0003"}, got)
	})

	t.Run("continues after existing tickets", func(t *testing.T) {
		got := PlanNumbers("BK123", 2, 4)
		assert.Equal(t, []string{"BK123-0003", "BK123-0004"}, got)
	})

	t.Run("fully issued booking plans nothing", func(t *testing.T) {
		assert.Nil(t, PlanNumbers("BK123", 4, 4))
		assert.Nil(t, PlanNumbers("BK123", 5, 4))
	})
}

func TestBuildTickets(t *testing.T) {
	bookingID := uuid.New()
	issued := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	b := &domain.BookingWithItems{
		Booking: domain.Booking{
			ID:        bookingID,
			Reference: "BK20260601120000XXXXX",
		},
		EventName: "Summer Fest",
		Items: []domain.BookingLineItem{
			{TicketTypeID: 1, Quantity: 2},
			{TicketTypeID: 2, Quantity: 1},
		},
		TypeNames: map[int64]string{1: "GA", 2: "VIP"},
	}

	t.Run("one ticket per unit in line item order", func(t *testing.T) {
		numbers := PlanNumbers(b.Booking.Reference, 0, b.Units())
		tickets, err := buildTickets(b, 0, numbers, issued)
		require.NoError(t, err)
		require.Len(t, tickets, 3)

		assert.Equal(t, int64(1), tickets[0].TicketTypeID)
		assert.Equal(t, int64(1), tickets[1].TicketTypeID)
		assert.Equal(t, int64(2), tickets[2].TicketTypeID)

		for i, tk := range tickets {
			assert.Equal(t, numbers[i], tk.Number)
			assert.Equal(t, bookingID, tk.BookingID)
			assert.NotEmpty(t, tk.QRPNG)

			p, err := DecodePayload(tk.Payload)
			require.NoError(t, err)
			assert.Equal(t, tk.Number, p.TicketNumber)
			assert.Equal(t, "Summer Fest", p.EventName)
		}

		assert.Equal(t, "VIP", func() string {
			p, _ := DecodePayload(tickets[2].Payload)
			return p.TypeName
		}())
	})

	t.Run("partial re-run only builds the missing units", func(t *testing.T) {
		numbers := PlanNumbers(b.Booking.Reference, 2, b.Units())
		tickets, err := buildTickets(b, 2, numbers, issued)
		require.NoError(t, err)
		require.Len(t, tickets, 1)

		assert.Equal(t, b.Booking.Reference+"-0003", tickets[0].Number)
		// the third unit belongs to the second line item
		assert.Equal(t, int64(2), tickets[0].TicketTypeID)
	})
}
