package lifecycle

import (
	"errors"
)

// Precondition failures. None of them leaves a partial write behind.
var (
	ErrNoActiveEvent  = errors.New("no active event")
	ErrNotDraft       = errors.New("event is not a draft")
	ErrEventCompleted = errors.New("event is completed")
	ErrEventNotFound  = errors.New("event not found")
	ErrNotConfirmed   = errors.New("action not confirmed")
)
