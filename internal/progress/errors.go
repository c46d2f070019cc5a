package progress

import "errors"

var (
	// ErrMissingUserID indicates a required user id was absent.
	ErrMissingUserID = errors.New("user id is required")
	// ErrInvalidResult indicates a quest result failed validation.
	ErrInvalidResult = errors.New("invalid quest result")
)
