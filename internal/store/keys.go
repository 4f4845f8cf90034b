package store

const (
	KeySession     = "bpms_session"
	KeyActiveEvent = "bpms_active_event"
	KeyEvents      = "bpms_events"

	ticketsKeyPrefix = "bpms_tickets_"
	defaultTicketsID = "default"
)

// KeyTickets returns the storage key of an event's ticket set.
func KeyTickets(eventID string) string {
	if eventID == "" {
		eventID = defaultTicketsID
	}
	return ticketsKeyPrefix + eventID
}
