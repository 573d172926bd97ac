package statemachine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidArguments indicates a caller bug: the metadata passed to a
// mutating operation is missing the acting user or acting team.
var ErrInvalidArguments = errors.New("acting_user and acting_team are required")

// ErrInvalidEvent is the class of all "this event cannot fire" failures.
// Use errors.Is against this sentinel, or errors.As for the details.
var ErrInvalidEvent = errors.New("invalid event")

// InvalidEventError reports an event that is not configured or not
// authorized for the case in its current state.
type InvalidEventError struct {
	CaseID uuid.UUID
	Event  string
	Role   string
	State  string
	Reason string
}

func (e *InvalidEventError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("invalid event %q on case %s in state %q: %s",
			e.Event, e.CaseID, e.State, e.Reason)
	}
	return fmt.Sprintf("invalid event %q for role %q on case %s in state %q: %s",
		e.Event, e.Role, e.CaseID, e.State, e.Reason)
}

func (e *InvalidEventError) Is(target error) bool {
	return target == ErrInvalidEvent
}
