package quest

import (
	"errors"
	"fmt"
)

var (
	// ErrRegionLocked indicates a start on a region whose prerequisite is not completed.
	ErrRegionLocked = errors.New("region is locked")
	// ErrSessionAbandoned is returned to operations that were in flight when the session was abandoned.
	ErrSessionAbandoned = errors.New("quest session abandoned")
	// ErrMissingUserID indicates a required user id was absent.
	ErrMissingUserID = errors.New("user id is required")
)

// ValidationError rejects a transition that is illegal in the current state. State is unchanged.
type ValidationError struct {
	Op     string
	State  State
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s rejected in state %s: %s", e.Op, e.State, e.Reason)
}

// NetworkError wraps a failed collaborator call. The caller may retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
