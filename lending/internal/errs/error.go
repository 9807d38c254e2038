package errs

import (
	"errors"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrReference    = errors.New("invalid equipment")
	ErrInvalidState = errors.New("invalid state transition")
	ErrCapacity     = errors.New("no availability in that window")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	ErrEmailTaken         = errors.New("email in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
