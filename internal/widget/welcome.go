package widget

import (
	"strings"

	"github.com/dmc-digital/chat-session-engine/internal/model"
)

// DefaultWelcomeMessage is the synthetic greeting injected when a bot
// session starts without any system message in history.
const DefaultWelcomeMessage = "Hola, soy el asistente de DMC. Selecciona una opción para ayudarte mejor."

// WelcomePolicy decides whether a freshly initialized bot session needs a
// synthetic welcome message. The server's "first message" convention may
// change, so this is a knob rather than a hard rule.
type WelcomePolicy struct {
	// Message is the text to inject.
	Message string

	// Needed inspects the normalized history and reports whether the
	// welcome should be injected.
	Needed func(history []model.Message) bool
}

// DefaultWelcomePolicy injects the welcome only when history has no system
// message with non-blank text.
func DefaultWelcomePolicy() WelcomePolicy {
	return WelcomePolicy{
		Message: DefaultWelcomeMessage,
		Needed: func(history []model.Message) bool {
			for _, m := range history {
				if m.Sender == model.SenderSystem && strings.TrimSpace(m.Text) != "" {
					return false
				}
			}
			return true
		},
	}
}
