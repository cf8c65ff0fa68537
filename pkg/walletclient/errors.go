package walletclient

import (
	"fmt"
)

// TransportMessage is shown to the operator for any failure that did not
// produce a readable response.
const TransportMessage = "Unable to reach the wallet service. Please try again."

// BusinessError is a well-formed envelope with success=false.
type BusinessError struct {
	Status  int
	Message string
}

func (e *BusinessError) Error() string {
	return e.Message
}

// TransportError covers network failures, timeouts, and undecodable responses.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
