package catalog

import (
	"errors"
)

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrEventConflict  = errors.New("event already exists")
	ErrCodeConflict   = errors.New("discount code already exists")
	ErrAccessDenied   = errors.New("access denied")
	ErrInvalidEvent   = errors.New("invalid event")
	ErrInvalidPricing = errors.New("invalid ticket type pricing")
)
