package booking

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("invalid booking request")
	ErrEventNotFound      = errors.New("event not found")
	ErrEventNotOnSale     = errors.New("event is not on sale")
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	ErrNotEnoughAvailable = errors.New("not enough tickets available")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidTransition  = errors.New("booking status does not allow this transition")
	ErrDiscountNotFound   = errors.New("discount code not found")
	ErrDiscountNotUsable  = errors.New("discount code is not usable")
	ErrDiscountWrongEvent = errors.New("discount code is for a different event")
	ErrRateLimited        = errors.New("too many booking attempts")
)

type QuantityCapError struct {
	Requested int
	Cap       int
}

func (e QuantityCapError) Error() string {
	return fmt.Sprintf("requested %d units, cap is %d", e.Requested, e.Cap)
}
