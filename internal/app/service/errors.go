package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput means the caller sent no usable URL or short code.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExhaustedRetries means every candidate code collided. It is a capacity
	// condition, not a client error.
	ErrExhaustedRetries = errors.New("could not allocate a unique short code")

	// ErrNotFound means the short code is unknown or expired.
	ErrNotFound = errors.New("short link not found")

	// ErrStore wraps durable store faults on the write path.
	ErrStore = errors.New("link store failure")

	// ErrTransient wraps store faults on the read path.
	ErrTransient = errors.New("transient dependency failure")
)

// ValidationError carries the reason a submitted URL was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("url rejected: %s", e.Reason)
}

// InvalidatedError reports that a stored URL failed revalidation and the link was removed.
type InvalidatedError struct {
	Code   string
	Reason string
}

func (e *InvalidatedError) Error() string {
	return fmt.Sprintf("link %s invalidated: %s", e.Code, e.Reason)
}
