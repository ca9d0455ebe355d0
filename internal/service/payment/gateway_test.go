package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedGateway_Tokenize(t *testing.T) {
	g := NewSimulatedGateway(0, time.Millisecond)
	ctx := context.Background()

	tok, err := g.Tokenize(ctx, CardFacts{
		Number: "4111 1111 1111 1111",
		Expiry: "12/30",
		CVV:    "123",
		Holder: "A Customer",
	})
	require.NoError(t, err)
	assert.Equal(t, "1111", tok.Last4)
	assert.Equal(t, "visa", tok.Brand)
	assert.NotEmpty(t, tok.Value)

	_, err = g.Tokenize(ctx, CardFacts{Number: "not a card", CVV: "123"})
	assert.ErrorIs(t, err, ErrInvalidCard)

	_, err = g.Tokenize(ctx, CardFacts{Number: "4111111111111111", CVV: "7"})
	assert.ErrorIs(t, err, ErrInvalidCard)
}

func TestSimulatedGateway_Charge(t *testing.T) {
	ctx := context.Background()
	amount := decimal.NewFromInt(100)

	t.Run("always approves at 0 percent failure", func(t *testing.T) {
		g := NewSimulatedGateway(0, time.Millisecond)
		tok, err := g.Tokenize(ctx, CardFacts{Number: "5500000000000004", CVV: "123"})
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			res, err := g.Charge(ctx, tok, amount)
			require.NoError(t, err)
			assert.NotEmpty(t, res.TransactionID)
			assert.NotContains(t, res.TransactionID, "-")
		}
	})

	t.Run("always declines at 100 percent failure", func(t *testing.T) {
		g := NewSimulatedGateway(100, time.Millisecond)
		tok, err := g.Tokenize(ctx, CardFacts{Number: "5500000000000004", CVV: "123"})
		require.NoError(t, err)

		_, err = g.Charge(ctx, tok, amount)
		assert.ErrorIs(t, err, ErrCardDeclined)
	})

	t.Run("rejects empty token and non-positive amount", func(t *testing.T) {
		g := NewSimulatedGateway(0, time.Millisecond)

		_, err := g.Charge(ctx, Token{}, amount)
		assert.ErrorIs(t, err, ErrInvalidCard)

		tok, err := g.Tokenize(ctx, CardFacts{Number: "340000000000009", CVV: "1234"})
		require.NoError(t, err)
		assert.Equal(t, "amex", tok.Brand)

		_, err = g.Charge(ctx, tok, decimal.Zero)
		assert.Error(t, err)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		g := NewSimulatedGateway(0, time.Second)
		tok, err := g.Tokenize(ctx, CardFacts{Number: "4111111111111111", CVV: "123"})
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err = g.Charge(cctx, tok, amount)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
