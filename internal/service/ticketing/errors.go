package ticketing

import (
	"errors"
)

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrBookingNotConfirmed = errors.New("booking is not confirmed")
	ErrAccessDenied        = errors.New("access denied")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrBadPayload          = errors.New("malformed ticket payload")
)
