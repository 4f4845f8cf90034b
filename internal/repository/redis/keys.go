package redis

import "fmt"

const ns = "bpms:v1"

// KeyKV namespaces an application storage key (bpms_events, ...) inside Redis.
func KeyKV(key string) string {
	return fmt.Sprintf("%s:kv:%s", ns, key)
}

func KeyDashboardSummary() string {
	return ns + ":dashboard:summary"
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemTickets(eventID, idemKey string) string {
	return fmt.Sprintf("%s:idem:tickets:%s:%s", ns, eventID, idemKey)
}

func ChannelEventsChanged() string {
	return ns + ":events:changed"
}
