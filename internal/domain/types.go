package domain

import (
	"time"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
)

type TicketStatus string

const (
	TicketUnused  TicketStatus = "unused"
	TicketUsed    TicketStatus = "used"
	TicketExpired TicketStatus = "expired"
)

// DateLayout and TimeLayout are the wire formats of Event.Date and Event.Time.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Event struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Date      string      `json:"date"`
	Time      string      `json:"time,omitempty"`
	Venue     string      `json:"venue"`
	Status    EventStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at,omitzero"`
}

// EventFields carries raw form values for creating or editing an event.
type EventFields struct {
	Name  string `json:"name"`
	Date  string `json:"date"`
	Time  string `json:"time"`
	Venue string `json:"venue"`
}

// Day parses Date. ok is false when the event has no usable date.
func (e Event) Day(loc *time.Location) (day time.Time, ok bool) {
	if e.Date == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, e.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

type Ticket struct {
	Code      string       `json:"code"`
	Status    TicketStatus `json:"status"`
	UsedAt    *time.Time   `json:"usedAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
	CreatedAt time.Time    `json:"createdAt"`
}

// StatusAt derives the display status of t at now. The stored Status field
// is not consulted.
func (t Ticket) StatusAt(now time.Time) TicketStatus {
	switch {
	case t.UsedAt != nil:
		return TicketUsed
	case !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now):
		return TicketExpired
	default:
		return TicketUnused
	}
}

type TicketCounts struct {
	Unused  int `json:"unused"`
	Used    int `json:"used"`
	Expired int `json:"expired"`
	Total   int `json:"total"`
}

type Role string

const (
	RoleEventManager Role = "Event Manager"
	RoleJudge        Role = "Judge"
	RoleContestant   Role = "Contestant"
	RoleAudience     Role = "Audience"
)

type Account struct {
	Email    string
	Password string
	Role     Role
}

type Session struct {
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	LoginTime time.Time `json:"loginTime"`
}

type ChecklistItem struct {
	Key  string `json:"key"`
	Done bool   `json:"done"`
}

type Summary struct {
	Event          *Event          `json:"event"`
	DaysUntilEvent int             `json:"days_until_event"`
	Countdown      string          `json:"countdown"`
	Tickets        TicketCounts    `json:"tickets"`
	Checklist      []ChecklistItem `json:"checklist"`
	Progress       int             `json:"progress"`
}
