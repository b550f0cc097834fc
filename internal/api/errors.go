package api

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a failed conversation API call. Status carries the HTTP status
// code; Detail carries the technical message from the response envelope.
type Error struct {
	Status  int
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chat api: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("chat api: request failed (status %d)", e.Status)
}

// tokenErrorPatterns are the message fragments the upstream service uses
// when it rejects a call because of the session token. Matched lowercase.
var tokenErrorPatterns = []string{
	"token",
	"sesión",
	"sesion",
	"código de cliente inválido",
	"codigo de cliente invalido",
}

// IsTokenError reports whether err means the session token was invalid,
// expired, or missing. Token errors are always recovered by clearing the
// token and re-initializing; they are never surfaced as hard failures.
func IsTokenError(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}

	if apiErr.Status == 401 || apiErr.Status == 403 {
		return true
	}

	text := strings.ToLower(apiErr.Message + " " + apiErr.Detail)
	for _, pattern := range tokenErrorPatterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}

	return false
}

// UserMessage reduces err to a short human-readable string for session
// state. Anything that is not an API error falls back to a generic notice.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "No se pudo completar la solicitud de chat."
}
