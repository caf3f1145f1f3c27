package redis

import "fmt"

const ns = "tixseats:v1"

func KeyEventSummary(eventID string) string {
	return fmt.Sprintf("%s:event:%s:summary", ns, eventID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemReservation(partnerID, idemKey string) string {
	return fmt.Sprintf("%s:idem:reservations:%s:%s", ns, partnerID, idemKey)
}

func ChannelInventoryChanged() string {
	return ns + ":inventory:changed"
}
