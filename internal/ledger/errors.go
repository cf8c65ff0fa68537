package ledger

import "errors"

var (
	ErrInvalidAmount       = errors.New("Please enter an amount greater than zero")
	ErrInsufficientBalance = errors.New("Insufficient wallet balance")
	ErrRecipientRequired   = errors.New("Please select a recipient")
	ErrNotPermitted        = errors.New("You do not have permission to perform this action")
	ErrInvalidDate         = errors.New("Date must be formatted as YYYY-MM-DD")
	ErrDialogBusy          = errors.New("Another wallet action is already in progress")
)

// ValidationError is a local check that failed before any request was sent.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
