package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const timeLayout = "2006-01-02T15:04:05Z"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

var errInvalidBody = errors.New("Request body must be valid JSON with Content-Type: application/json")

// ParseJSON decodes the request body as JSON into v, rejecting unknown
// fields. It returns an error for a missing or incorrect content type or
// malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	return parseJSON(r, v, true)
}

// ParseLenientJSON is ParseJSON for third-party payloads that carry more
// fields than the API reads.
func ParseLenientJSON(r *http.Request, v any) error {
	return parseJSON(r, v, false)
}

func parseJSON(r *http.Request, v any, strict bool) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return errInvalidBody
	}

	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
