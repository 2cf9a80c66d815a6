package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrEmptyMessage     = errors.New("empty message")
	ErrExchangeInFlight = errors.New("exchange already in flight")
	ErrMalformedBody    = errors.New("malformed request body")
)

type jsonError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body := jsonError{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	_ = json.NewEncoder(w).Encode(body)
}
