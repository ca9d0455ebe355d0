package payment

import (
	"errors"
)

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrInvalidBookingState = errors.New("booking is not awaiting payment")
	ErrAmountMismatch      = errors.New("payment amount does not match booking amount")
	ErrNotEnoughAvailable  = errors.New("not enough tickets available")
	ErrDiscountExhausted   = errors.New("discount code has no usages left")
	ErrDuplicateTxn        = errors.New("transaction id already recorded")
	ErrConfirmInFlight     = errors.New("a confirmation with this idempotency key is in flight")
	ErrInvalidCard         = errors.New("invalid card details")
	ErrCardDeclined        = errors.New("card declined")
)
