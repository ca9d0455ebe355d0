package ticketing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	issued := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

	p := Payload{
		TicketNumber:     "BK20260314193000ABCDE-0001",
		BookingReference: "BK20260314193000ABCDE",
		EventName:        "Spring Gala",
		TypeName:         "VIP",
		IssuedAt:         issued,
	}

	encoded := p.Encode()
	assert.Equal(t,
		"ticket:BK20260314193000ABCDE-0001;booking:BK20260314193000ABCDE;event:Spring Gala;type:VIP;issued:2026-03-14T19:30:00Z",
		encoded,
	)

	decoded, err := DecodePayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestPayloadSanitizesSeparator(t *testing.T) {
	p := Payload{
		TicketNumber:     "BK-0001",
		BookingReference: "BK",
		EventName:        "Rock; Paper; Scissors",
		TypeName:         "GA",
		IssuedAt:         time.Now().UTC().Truncate(time.Second),
	}

	decoded, err := DecodePayload(p.Encode())
	require.NoError(t, err)
	assert.Equal(t, "Rock, Paper, Scissors", decoded.EventName)
}

func TestPayloadKeepsColonsInNames(t *testing.T) {
	p := Payload{
		TicketNumber:     "BK-0001",
		BookingReference: "BK",
		EventName:        "Live: Unplugged",
		TypeName:         "GA",
		IssuedAt:         time.Now().UTC().Truncate(time.Second),
	}

	decoded, err := DecodePayload(p.Encode())
	require.NoError(t, err)
	assert.Equal(t, "Live: Unplugged", decoded.EventName)
}

func TestDecodePayloadRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"too few fields", "ticket:a;booking:b"},
		{"missing key", "ticket:a;booking:b;event:c;type:d;wrong:e"},
		{"no separator in field", "ticket;booking:b;event:c;type:d;issued:2026-01-01T00:00:00Z"},
		{"bad timestamp", "ticket:a;booking:b;event:c;type:d;issued:yesterday"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodePayload(tc.in)
			assert.ErrorIs(t, err, ErrBadPayload)
		})
	}
}
