package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrMalformedLesson = errors.New("malformed lesson input")
	ErrUnavailable     = errors.New("data service unavailable")
	ErrBusy            = errors.New("previous message is still being processed")
)
