package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrJobNotTerminal  = errors.New("job has not finished")
	ErrProviderFailure = errors.New("provider failure")
	ErrDuplicateUser   = errors.New("username already taken")
)
