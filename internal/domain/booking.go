package domain

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CanTransition reports whether a booking status change is legal. Statuses
// only move forward: pending -> confirmed|cancelled, confirmed ->
// completed|cancelled. Cancelled and completed are terminal.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	switch s {
	case BookingPending:
		return to == BookingConfirmed || to == BookingCancelled
	case BookingConfirmed:
		return to == BookingCompleted || to == BookingCancelled
	default:
		return false
	}
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

// LineItemRequest is a (ticketTypeId, quantity) pair in a booking request.
type LineItemRequest struct {
	TicketTypeID int64
	Quantity     int
}

// ValidateLineItemRequests checks the shape of a booking request: non-empty,
// every quantity positive, no duplicate ticket types, and total units within
// the per-booking cap.
func ValidateLineItemRequests(reqs []LineItemRequest, maxUnits int) error {
	if len(reqs) == 0 {
		return fmt.Errorf("no line items requested")
	}

	seen := make(map[int64]bool, len(reqs))
	units := 0
	for _, r := range reqs {
		if r.Quantity <= 0 {
			return fmt.Errorf("ticket type %d: quantity must be positive", r.TicketTypeID)
		}
		if seen[r.TicketTypeID] {
			return fmt.Errorf("ticket type %d requested twice", r.TicketTypeID)
		}
		seen[r.TicketTypeID] = true
		units += r.Quantity
	}

	if maxUnits > 0 && units > maxUnits {
		return fmt.Errorf("requested %d units, cap is %d", units, maxUnits)
	}

	return nil
}

// PriceLineItems builds immutable line items from requests at the ticket
// types' current prices and returns them with the summed total.
func PriceLineItems(
	reqs []LineItemRequest,
	types map[int64]TicketType,
) ([]BookingLineItem, decimal.Decimal, error) {
	items := make([]BookingLineItem, 0, len(reqs))
	total := decimal.Zero

	for _, r := range reqs {
		tt, ok := types[r.TicketTypeID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("ticket type %d not found", r.TicketTypeID)
		}

		sub := tt.Price.Mul(decimal.NewFromInt(int64(r.Quantity)))
		items = append(items, BookingLineItem{
			TicketTypeID: r.TicketTypeID,
			Quantity:     r.Quantity,
			UnitPrice:    tt.Price,
			Subtotal:     sub,
		})
		total = total.Add(sub)
	}

	return items, total, nil
}

// FinalAmount is totalAmount minus discountAmount, floored at zero.
func FinalAmount(total, discount decimal.Decimal) decimal.Decimal {
	final := total.Sub(discount)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final
}

const refAlphabet = "23456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewBookingReference builds a human-legible, globally unique booking
// reference: "BK" + UTC timestamp + a random suffix. The suffix makes
// references created within the same second distinct; a unique constraint
// on the column backs it up.
func NewBookingReference(now time.Time) string {
	b := make([]byte, 5)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = refAlphabet[int(b[i])%len(refAlphabet)]
	}
	return fmt.Sprintf("BK%s%s", now.UTC().Format("20060102150405"), b)
}
