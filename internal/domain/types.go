package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCustomer  Role = "customer"
	RoleOrganizer Role = "organizer"
)

// Actor is the explicit caller identity passed into every core operation.
// Transport derives it from the request; the core never reads ambient state.
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleOrganizer
}

// CanAccessBooking reports whether the actor may act on a booking owned by
// customerID. Customers act only on their own bookings.
func (a Actor) CanAccessBooking(customerID int64) bool {
	return a.IsStaff() || a.UserID == customerID
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Event struct {
	ID          int64     `json:"id"`
	OrganizerID int64     `json:"organizer_id"`
	Name        string    `json:"name"`
	Venue       string    `json:"venue"`
	Starts      time.Time `json:"starts_at"`
	Ends        time.Time `json:"ends_at"`
	// TotalSeats/AvailableSeats are informational; the authoritative
	// remaining count per type lives in TicketType.AvailableQuantity.
	TotalSeats     int  `json:"total_seats"`
	AvailableSeats int  `json:"available_seats"`
	IsActive       bool `json:"is_active"`
	IsPublished    bool `json:"is_published"`
}

type TicketType struct {
	ID                int64           `json:"id"`
	EventID           int64           `json:"event_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity"`
}

type EventWithTicketTypes struct {
	Event       Event        `json:"event"`
	TicketTypes []TicketType `json:"ticket_types"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type Booking struct {
	ID         uuid.UUID     `json:"id"`
	Reference  string        `json:"reference"`
	EventID    int64         `json:"event_id"`
	CustomerID int64         `json:"customer_id"`
	Status     BookingStatus `json:"status"`
	// DiscountID is set when a code was applied at creation. Its usage
	// count is consumed when the booking confirms, not when it is created.
	DiscountID     *int64          `json:"discount_id,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	BookedAt       time.Time       `json:"booked_at"`
}

// BookingLineItem is created atomically with its Booking and never mutated
// afterward. Cancellation reverses quantities into TicketType, it does not
// delete line items.
type BookingLineItem struct {
	ID           int64           `json:"id"`
	BookingID    uuid.UUID       `json:"booking_id"`
	TicketTypeID int64           `json:"ticket_type_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type BookingWithItems struct {
	Booking   Booking           `json:"booking"`
	EventName string            `json:"event_name"`
	Items     []BookingLineItem `json:"items"`
	TypeNames map[int64]string  `json:"type_names,omitempty"`
}

// Units is the total number of ticket units across all line items.
func (b BookingWithItems) Units() int {
	n := 0
	for _, it := range b.Items {
		n += it.Quantity
	}
	return n
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentSuccess  PaymentStatus = "success"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodCreditCard    PaymentMethod = "credit_card"
	MethodDebitCard     PaymentMethod = "debit_card"
	MethodOnlineBanking PaymentMethod = "online_banking"
	MethodWallet        PaymentMethod = "wallet"
)

type Payment struct {
	ID            uuid.UUID       `json:"id"`
	BookingID     uuid.UUID       `json:"booking_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	Status        PaymentStatus   `json:"status"`
	CardLast4     string          `json:"card_last4,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

type Ticket struct {
	ID           uuid.UUID `json:"id"`
	BookingID    uuid.UUID `json:"booking_id"`
	TicketTypeID int64     `json:"ticket_type_id"`
	Number       string    `json:"number"`
	// Payload is the verification string encoded into QRPNG. Both are
	// stored so re-issuance and PDF rendering never re-derive them.
	Payload  string    `json:"payload"`
	QRPNG    []byte    `json:"-"`
	IssuedAt time.Time `json:"issued_at"`
}

type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed_amount"
)

type Discount struct {
	ID                int64           `json:"id"`
	Code              string          `json:"code"`
	EventID           *int64          `json:"event_id,omitempty"`
	Kind              DiscountKind    `json:"kind"`
	Percentage        decimal.Decimal `json:"percentage"`
	Amount            decimal.Decimal `json:"amount"`
	ValidFrom         time.Time       `json:"valid_from"`
	ValidTo           time.Time       `json:"valid_to"`
	MaxUsageCount     *int            `json:"max_usage_count,omitempty"`
	CurrentUsageCount int             `json:"current_usage_count"`
	IsActive          bool            `json:"is_active"`
}

// UsableAt reports whether the discount may be applied at t: active, inside
// its validity window and not exhausted.
func (d Discount) UsableAt(t time.Time) bool {
	if !d.IsActive {
		return false
	}
	if t.Before(d.ValidFrom) || t.After(d.ValidTo) {
		return false
	}
	if d.MaxUsageCount != nil && d.CurrentUsageCount >= *d.MaxUsageCount {
		return false
	}
	return true
}

// ApplyTo computes the discount amount for a booking total, capped at the
// total so the payable amount never goes negative.
func (d Discount) ApplyTo(total decimal.Decimal) decimal.Decimal {
	var off decimal.Decimal
	switch d.Kind {
	case DiscountPercentage:
		off = total.Mul(d.Percentage).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFixed:
		off = d.Amount
	}
	if off.GreaterThan(total) {
		return total
	}
	if off.IsNegative() {
		return decimal.Zero
	}
	return off
}
