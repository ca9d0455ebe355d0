package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardFacts is what a client submits to pay. Never stored; only the last
// four digits survive tokenization.
type CardFacts struct {
	Number string
	Expiry string
	CVV    string
	Holder string
}

type Token struct {
	Value string
	Last4 string
	Brand string
}

type ChargeResult struct {
	TransactionID string
}

// Gateway is the payment processor contract. The simulated implementation
// below is the only one; a real processor would slot in behind the same two
// calls.
type Gateway interface {
	Tokenize(ctx context.Context, card CardFacts) (Token, error)
	Charge(ctx context.Context, token Token, amount decimal.Decimal) (ChargeResult, error)
}

// SimulatedGateway approves a configurable percentage of charges after a
// short artificial delay.
type SimulatedGateway struct {
	failurePercent int
	latency        time.Duration
}

func NewSimulatedGateway(failurePercent int, latency time.Duration) *SimulatedGateway {
	if failurePercent < 0 {
		failurePercent = 0
	}
	if failurePercent > 100 {
		failurePercent = 100
	}
	if latency <= 0 {
		latency = 500 * time.Millisecond
	}

	return &SimulatedGateway{
		failurePercent: failurePercent,
		latency:        latency,
	}
}

func (g *SimulatedGateway) Tokenize(ctx context.Context, card CardFacts) (Token, error) {
	const op = "payment.SimulatedGateway.Tokenize"

	digits := strings.ReplaceAll(card.Number, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return Token{}, fmt.Errorf("%s:%w", op, ErrInvalidCard)
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return Token{}, fmt.Errorf("%s:%w", op, ErrInvalidCard)
		}
	}
	if len(card.CVV) < 3 || len(card.CVV) > 4 {
		return Token{}, fmt.Errorf("%s:%w", op, ErrInvalidCard)
	}

	return Token{
		Value: "tok_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		Last4: digits[len(digits)-4:],
		Brand: brandOf(digits),
	}, nil
}

func (g *SimulatedGateway) Charge(
	ctx context.Context,
	token Token,
	amount decimal.Decimal,
) (ChargeResult, error) {
	const op = "payment.SimulatedGateway.Charge"

	if token.Value == "" {
		return ChargeResult{}, fmt.Errorf("%s:%w", op, ErrInvalidCard)
	}
	if !amount.IsPositive() {
		return ChargeResult{}, fmt.Errorf("%s: amount must be positive", op)
	}

	select {
	case <-ctx.Done():
		return ChargeResult{}, ctx.Err()
	case <-time.After(g.latency):
	}

	if rand.Intn(100) < g.failurePercent {
		return ChargeResult{}, fmt.Errorf("%s:%w", op, ErrCardDeclined)
	}

	return ChargeResult{
		TransactionID: strings.ReplaceAll(uuid.New().String(), "-", ""),
	}, nil
}

func brandOf(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case strings.HasPrefix(digits, "5"):
		return "mastercard"
	case strings.HasPrefix(digits, "3"):
		return "amex"
	default:
		return "card"
	}
}
