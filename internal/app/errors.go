package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero with at most two decimal places")
	ErrInvalidDescription = errors.New("description must be at most 255 characters")
	ErrInvalidReference   = errors.New("reference must be at most 100 characters")
	ErrInvalidContact     = errors.New("contact id is required")
	ErrSelfTransfer       = errors.New("cannot transfer to the same contact")
	ErrInvalidDate        = errors.New("date must be formatted as YYYY-MM-DD")
	ErrRateLimited        = errors.New("too many wallet operations; please wait and try again")
)

// RateLimitError reports a rejected mutation and when it may be retried.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %ds)", ErrRateLimited.Error(), e.RetryAfterSeconds)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
