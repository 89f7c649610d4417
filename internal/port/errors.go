package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("record already exists")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidURL   = errors.New("invalid repository url")
	ErrTransport    = errors.New("git transport failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrArchived     = errors.New("repository is archived")
	ErrNotSyncable  = errors.New("repository not in a syncable state")
)
