package domain

import "encoding/json"

// Envelope is the uniform wrapper returned by every wallet endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
