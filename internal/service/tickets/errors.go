package tickets

import (
	"errors"
)

var (
	ErrEventIDRequired = errors.New("event id is required")
	ErrInvalidCount    = errors.New("ticket count must be positive")
	ErrEventNotFound   = errors.New("event not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrTicketUsed      = errors.New("ticket already used")
	ErrTicketExpired   = errors.New("ticket expired")
)
