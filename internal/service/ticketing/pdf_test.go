package ticketing

import (
	"testing"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTicketPDF(t *testing.T) {
	p := Payload{
		TicketNumber:     "BK20260601120000XXXXX-0001",
		BookingReference: "BK20260601120000XXXXX",
		EventName:        "Summer Fest",
		TypeName:         "GA",
		IssuedAt:         time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	png, err := qrcode.Encode(p.Encode(), qrcode.Medium, 256)
	require.NoError(t, err)

	out, err := RenderTicketPDF(p, png)
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))

	// renders without a code image too
	out, err = RenderTicketPDF(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}
