package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateMessageText bounds user message input. Blank input is handled
// by the controller as a silent no-op, so only size and encoding are
// checked here.
func ValidateMessageText(text string) error {
	if len(text) > 4000 {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateWidgetID validates a widget session id.
func ValidateWidgetID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid widget session ID format")
	}
	return nil
}
