package lifecycle

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirinyoku/bpms/internal/domain"
)

const (
	nameMinLen  = 3
	nameMaxLen  = 100
	venueMinLen = 5
	venueMaxLen = 200
)

// validateFields trims the raw form values and checks them. The returned
// fields are the normalized values to persist.
func validateFields(in domain.EventFields) (domain.EventFields, error) {
	out := domain.EventFields{
		Name:  strings.TrimSpace(in.Name),
		Date:  strings.TrimSpace(in.Date),
		Time:  strings.TrimSpace(in.Time),
		Venue: strings.TrimSpace(in.Venue),
	}

	verr := &domain.ValidationError{}

	switch n := utf8.RuneCountInString(out.Name); {
	case n == 0:
		verr.Add("name", "Event name is required")
	case n < nameMinLen:
		verr.Add("name", "Event name must be at least 3 characters")
	case n > nameMaxLen:
		verr.Add("name", "Event name must not exceed 100 characters")
	}

	if out.Date == "" {
		verr.Add("date", "Event date is required")
	} else if _, err := time.Parse(domain.DateLayout, out.Date); err != nil {
		verr.Add("date", "Please enter a valid date")
	}

	if out.Time != "" {
		if _, err := time.Parse(domain.TimeLayout, out.Time); err != nil {
			verr.Add("time", "Please enter a valid time")
		}
	}

	switch n := utf8.RuneCountInString(out.Venue); {
	case n == 0:
		verr.Add("venue", "Venue/Location is required")
	case n < venueMinLen:
		verr.Add("venue", "Venue/Location must be at least 5 characters")
	case n > venueMaxLen:
		verr.Add("venue", "Venue/Location must not exceed 200 characters")
	}

	return out, verr.Err()
}
