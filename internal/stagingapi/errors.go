package stagingapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusError is a non-2xx answer from the registration API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("registration api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("registration api: status %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotReady reports a 425 Too Early answer: the batch is still staging.
func IsNotReady(err error) bool {
	return StatusCode(err) == http.StatusTooEarly
}

// IsNotFound reports a 404 answer.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// errorMessage extracts the server's message from {"detail": {"message": ...}},
// {"detail": "..."} or {"message": ...}, falling back to the raw body.
func errorMessage(raw []byte) string {
	var doc struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if len(doc.Detail) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(doc.Detail, &detail) == nil && detail.Message != "" {
			return detail.Message
		}
		var s string
		if json.Unmarshal(doc.Detail, &s) == nil && s != "" {
			return s
		}
	}
	return doc.Message
}
