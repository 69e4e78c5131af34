package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session")
	ErrMissingSecret   = errors.New("session secret must be set")
)
