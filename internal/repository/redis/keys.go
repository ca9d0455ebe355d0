package redis

import "fmt"

const ns = "starbook:v1"

func KeyEventSummary(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:summary", ns, eventID)
}

func KeyEventAvailability(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:availability", ns, eventID)
}

func KeyIdemConfirm(bookingID string, idemKey string) string {
	return fmt.Sprintf("%s:idem:confirm:%s:%s", ns, bookingID, idemKey)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}
