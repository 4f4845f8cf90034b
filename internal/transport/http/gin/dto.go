package httpgin

import "github.com/kirinyoku/bpms/internal/domain"

// maxTicketsPerRequest bounds a single generation request.
const maxTicketsPerRequest = 1000

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EventRequest struct {
	Name  string `json:"name"`
	Date  string `json:"date"`
	Time  string `json:"time"`
	Venue string `json:"venue"`
}

func (r EventRequest) fields() domain.EventFields {
	return domain.EventFields{
		Name:  r.Name,
		Date:  r.Date,
		Time:  r.Time,
		Venue: r.Venue,
	}
}

type ActivateRequest struct {
	Confirm bool `json:"confirm"`
}

type GenerateTicketsRequest struct {
	Count int `json:"count" binding:"required,gt=0,lte=1000"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type SessionResponse struct {
	Session *domain.Session `json:"session"`
}

type EventResponse struct {
	Event *domain.Event `json:"event"`
}

type EventListResponse struct {
	Events []domain.Event `json:"events"`
}

type TicketListResponse struct {
	EventID string              `json:"event_id"`
	Tickets []domain.Ticket     `json:"tickets"`
	Counts  domain.TicketCounts `json:"counts"`
}

type GenerateTicketsResponse struct {
	EventID string          `json:"event_id"`
	Tickets []domain.Ticket `json:"tickets"`
}
