// Package domain holds the business error taxonomy shared by services and
// handlers.
package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrTopicNotActive      = errors.New("topic not active")
	ErrInvalidChoice       = errors.New("choice not in topic options")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyParticipated = errors.New("already participated")
	ErrAlreadySettled      = errors.New("topic already settled")
	ErrForbidden           = errors.New("forbidden")
	ErrUnavailable         = errors.New("storage unavailable")
)
