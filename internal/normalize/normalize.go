// Package normalize converts the heterogeneous wire shapes of conversation
// content into canonical message records and merges them idempotently.
package normalize

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmc-digital/chat-session-engine/internal/api"
	"github.com/dmc-digital/chat-session-engine/internal/model"
	"github.com/dmc-digital/chat-session-engine/internal/transport"
)

// Timestamp layouts accepted from the upstream service. Malformed or
// missing values fall back to "now"; leniency here is deliberate.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a wire timestamp, returning now() when the value
// is absent or unparseable.
func ParseTimestamp(value string, now func() time.Time) time.Time {
	if value == "" {
		return now()
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}

	return now()
}

func localID(prefix string, backendID *int64) string {
	if backendID != nil {
		return fmt.Sprintf("%s-%d", prefix, *backendID)
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

func kindForSender(sender string) model.Kind {
	if sender == string(model.SenderSystem) {
		return model.KindSystem
	}
	return model.KindChat
}

// FromHistory converts a stored history entry.
func FromHistory(entry api.HistoryMessage, now func() time.Time) model.Message {
	backendID := entry.ID

	return model.Message{
		ID:             localID("historial", &backendID),
		BackendID:      &backendID,
		ConversationID: model.Int64Ptr(entry.ConversacionID),
		Sender:         model.Sender(entry.Emisor),
		Text:           entry.Mensaje,
		Read:           model.BoolPtr(entry.Leido),
		CreatedAt:      ParseTimestamp(entry.CreatedAt, now),
		Kind:           kindForSender(entry.Emisor),
	}
}

// FromHistoryList converts a full history slice, tolerating nil.
func FromHistoryList(entries []api.HistoryMessage, now func() time.Time) []model.Message {
	messages := make([]model.Message, 0, len(entries))
	for _, entry := range entries {
		messages = append(messages, FromHistory(entry, now))
	}
	return messages
}

// FromRealtime converts a push "new message" payload.
func FromRealtime(event transport.MessageEvent, now func() time.Time) model.Message {
	return model.Message{
		ID:             localID("realtime", event.ID),
		BackendID:      event.ID,
		ConversationID: event.ConversacionID,
		Sender:         model.Sender(event.Emisor),
		Text:           event.Mensaje,
		Read:           event.Leido,
		CreatedAt:      ParseTimestamp(event.CreatedAt, now),
		Kind:           kindForSender(event.Emisor),
	}
}

// FromBotResponse converts a canned bot reply. Bot responses have no
// backend message identity; they are timestamped at normalization time.
func FromBotResponse(resp api.BotResponse, optionID int64, now func() time.Time) model.Message {
	backendless := resp.ID

	return model.Message{
		ID:        localID("bot-respuesta", &backendless),
		Sender:    model.SenderSystem,
		Text:      resp.MensajeRespuesta,
		CreatedAt: now(),
		Kind:      model.KindBotResponse,
		Meta: map[string]any{
			"tipo":          resp.Tipo,
			"opcion_id":     optionID,
			"bot_opcion_id": resp.BotOpcionID,
		},
	}
}

// NewLocalClientMessage builds the optimistic local echo of a user action
// before the network call resolves.
func NewLocalClientMessage(text string, kind model.Kind, now func() time.Time) model.Message {
	return model.Message{
		ID:        localID("cliente", nil),
		Sender:    model.SenderClient,
		Text:      text,
		Read:      model.BoolPtr(false),
		CreatedAt: now(),
		Kind:      kind,
	}
}

// NewSystemMessage builds a locally synthesized system message.
func NewSystemMessage(text string, kind model.Kind, now func() time.Time) model.Message {
	return model.Message{
		ID:        localID("sistema", nil),
		Sender:    model.SenderSystem,
		Text:      text,
		Read:      model.BoolPtr(true),
		CreatedAt: now(),
		Kind:      kind,
	}
}
