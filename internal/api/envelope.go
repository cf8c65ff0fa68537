package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/transfa/wallet-desk/internal/domain"
)

func writeEnvelope(w http.ResponseWriter, status int, message string, data interface{}) {
	envelope := domain.Envelope{Success: status < http.StatusBadRequest, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			status = http.StatusInternalServerError
			envelope = domain.Envelope{Success: false, Message: "Internal server error"}
		} else {
			envelope.Data = raw
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, message, nil)
}

func writeRateLimited(w http.ResponseWriter, retryAfter int, message string) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	writeError(w, http.StatusTooManyRequests, message)
}
