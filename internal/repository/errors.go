package repository

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrDiscountExhausted    = errors.New("discount exhausted")
)
