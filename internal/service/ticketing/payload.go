package ticketing

import (
	"fmt"
	"strings"
	"time"
)

// Payload is the verification string carried inside a ticket's QR code.
// The wire form is a fixed field order, semicolon separated:
//
//	ticket:{number};booking:{reference};event:{name};type:{typeName};issued:{RFC3339}
type Payload struct {
	TicketNumber     string
	BookingReference string
	EventName        string
	TypeName         string
	IssuedAt         time.Time
}

// Encode renders the payload wire form. Free-text fields are sanitized so
// they cannot break the field separators.
func (p Payload) Encode() string {
	return fmt.Sprintf("ticket:%s;booking:%s;event:%s;type:%s;issued:%s",
		sanitize(p.TicketNumber),
		sanitize(p.BookingReference),
		sanitize(p.EventName),
		sanitize(p.TypeName),
		p.IssuedAt.UTC().Format(time.RFC3339),
	)
}

// DecodePayload parses a scanned payload string back into its fields.
//
// Returns:
//   - error: ticketing.ErrBadPayload for anything that does not round-trip.
func DecodePayload(s string) (Payload, error) {
	parts := strings.Split(s, ";")
	if len(parts) != 5 {
		return Payload{}, fmt.Errorf("%w: expected 5 fields, got %d", ErrBadPayload, len(parts))
	}

	fields := make(map[string]string, len(parts))
	for _, part := range parts {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			return Payload{}, fmt.Errorf("%w: field %q", ErrBadPayload, part)
		}
		fields[k] = v
	}

	for _, k := range []string{"ticket", "booking", "event", "type", "issued"} {
		if _, ok := fields[k]; !ok {
			return Payload{}, fmt.Errorf("%w: missing %q", ErrBadPayload, k)
		}
	}

	issued, err := time.Parse(time.RFC3339, fields["issued"])
	if err != nil {
		return Payload{}, fmt.Errorf("%w: bad issued timestamp", ErrBadPayload)
	}

	return Payload{
		TicketNumber:     fields["ticket"],
		BookingReference: fields["booking"],
		EventName:        fields["event"],
		TypeName:         fields["type"],
		IssuedAt:         issued,
	}, nil
}

// sanitize strips the field separator; values keep everything else, the
// decoder splits each field on its first colon only.
func sanitize(s string) string {
	return strings.ReplaceAll(s, ";", ",")
}
