package httpgin

import (
	"time"

	"github.com/okozachenko/starbook/internal/domain"
)

type LineItemInput struct {
	TicketTypeID int64 `json:"ticket_type_id" binding:"required"`
	Quantity     int   `json:"quantity" binding:"required,gt=0"`
}

type CreateBookingRequest struct {
	EventID      int64           `json:"event_id" binding:"required"`
	Items        []LineItemInput `json:"items" binding:"required,min=1,dive"`
	DiscountCode string          `json:"discount_code"`
}

type ConfirmPaymentRequest struct {
	BookingID     string `json:"booking_id" binding:"required,uuid"`
	TransactionID string `json:"transaction_id" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	Method        string `json:"method" binding:"required"`
	CardLast4     string `json:"card_last4"`
}

type CardInput struct {
	Number string `json:"number" binding:"required"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv" binding:"required"`
	Holder string `json:"holder"`
}

type ProcessPaymentRequest struct {
	BookingID string    `json:"booking_id" binding:"required,uuid"`
	Card      CardInput `json:"card" binding:"required"`
	Method    string    `json:"method" binding:"required"`
}

type VerifyTicketRequest struct {
	Payload string `json:"payload" binding:"required"`
}

type TicketTypeInput struct {
	Name     string `json:"name" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type CreateEventRequest struct {
	Name        string            `json:"name" binding:"required"`
	Venue       string            `json:"venue" binding:"required"`
	StartsAt    string            `json:"starts_at" binding:"required"`
	EndsAt      string            `json:"ends_at" binding:"required"`
	TotalSeats  int               `json:"total_seats"`
	IsPublished bool              `json:"is_published"`
	TicketTypes []TicketTypeInput `json:"ticket_types"`
}

type AddTicketTypeRequest struct {
	Name     string `json:"name" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type CreateDiscountRequest struct {
	Code          string `json:"code" binding:"required"`
	EventID       *int64 `json:"event_id"`
	Kind          string `json:"kind" binding:"required,oneof=percentage fixed_amount"`
	Percentage    string `json:"percentage"`
	Amount        string `json:"amount"`
	ValidFrom     string `json:"valid_from" binding:"required"`
	ValidTo       string `json:"valid_to" binding:"required"`
	MaxUsageCount *int   `json:"max_usage_count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateEventResponse struct {
	EventID int64 `json:"event_id"`
}

type AddTicketTypeResponse struct {
	TicketTypeID int64 `json:"ticket_type_id"`
}

type CreateDiscountResponse struct {
	DiscountID int64 `json:"discount_id"`
}

type TicketResponse struct {
	ID           string    `json:"id"`
	TicketNumber string    `json:"ticket_number"`
	TicketTypeID int64     `json:"ticket_type_id"`
	Payload      string    `json:"payload"`
	IssuedAt     time.Time `json:"issued_at"`
}

func ticketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, TicketResponse{
			ID:           t.ID.String(),
			TicketNumber: t.Number,
			TicketTypeID: t.TicketTypeID,
			Payload:      t.Payload,
			IssuedAt:     t.IssuedAt,
		})
	}
	return out
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
