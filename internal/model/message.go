package model

import (
	"time"
)

// Sender identifies who authored a message. The upstream service sends
// free-form strings; these three values drive widget behavior.
type Sender string

const (
	SenderClient   Sender = "cliente"
	SenderSystem   Sender = "sistema"
	SenderOperator Sender = "operador"
)

// Kind classifies a message for rendering and dedup nuance. It never
// participates in protocol identity.
type Kind string

const (
	KindChat             Kind = "chat"
	KindBotMenuSelection Kind = "bot_menu"
	KindBotResponse      Kind = "bot_response"
	KindSystem           Kind = "system"
)

// Message is the canonical unit of conversation content. Every wire shape
// (history entry, realtime payload, local echo, bot response) is reduced to
// this record before it reaches the session.
type Message struct {
	// ID is locally unique and stable across re-renders. It is derived
	// from the backend id when known and synthesized otherwise.
	ID string `json:"id"`

	// BackendID is the server-assigned identity. When present it is the
	// deduplication key.
	BackendID *int64 `json:"backend_id,omitempty"`

	// ConversationID correlates realtime events to the active session.
	ConversationID *int64 `json:"conversation_id,omitempty"`

	Sender Sender `json:"sender"`
	Text   string `json:"text"`

	// Read is the client-message read receipt. Once true it never
	// regresses under merge.
	Read *bool `json:"read,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	Kind      Kind      `json:"kind"`

	Meta map[string]any `json:"meta,omitempty"`
}

// HasBackendID reports whether the server has assigned an identity.
func (m *Message) HasBackendID() bool {
	return m.BackendID != nil
}

// IsRead reports the read receipt, treating absent as false.
func (m *Message) IsRead() bool {
	return m.Read != nil && *m.Read
}

// BoolPtr returns a pointer to b. Wire shapes model optional booleans as
// pointers, so the helper lives next to the types that need it.
func BoolPtr(b bool) *bool {
	return &b
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
