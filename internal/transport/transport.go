// Package transport decides how session state stays fresh: a realtime push
// channel when one is available, interval polling otherwise.
package transport

// MessageEvent is a "new message" push payload. It has the same shape as a
// stored history entry; the conversation id is required to correlate the
// event to the active session.
type MessageEvent struct {
	ID             *int64 `json:"id"`
	ConversacionID *int64 `json:"conversacion_id"`
	Emisor         string `json:"emisor"`
	Mensaje        string `json:"mensaje"`
	Leido          *bool  `json:"leido"`
	CreatedAt      string `json:"created_at"`
}

// ReadEvent is a "messages read" push payload.
type ReadEvent struct {
	ConversacionID int64  `json:"conversacion_id"`
	Timestamp      string `json:"timestamp"`
}

// Handlers receive push events for one subscription. OnError is observed
// and logged only; channel failures never surface to the end user.
type Handlers struct {
	OnMessage func(MessageEvent)
	OnRead    func(ReadEvent)
	OnError   func(error)
}

// Subscription is an active private-topic subscription.
type Subscription interface {
	Unsubscribe()
}

// Channel is the injected push transport. Subscribe presents the session
// token via the channel's own authorization handshake; a nil Channel or a
// failed Subscribe degrades delivery to polling.
type Channel interface {
	Subscribe(conversationID int64, token string, handlers Handlers) (Subscription, error)
}
