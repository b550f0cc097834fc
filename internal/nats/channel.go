// Package nats adapts NATS subjects to the widget's realtime push channel.
package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/dmc-digital/chat-session-engine/internal/transport"
	"github.com/dmc-digital/chat-session-engine/pkg/logger"
)

const (
	// subjectPrefix scopes all widget realtime subjects.
	subjectPrefix = "chat"

	connectTimeout = 5 * time.Second
)

// MessageSubject is the private topic carrying new messages for one
// conversation.
func MessageSubject(conversationID int64) string {
	return fmt.Sprintf("%s.%d.mensaje", subjectPrefix, conversationID)
}

// ReadSubject is the private topic carrying read receipts.
func ReadSubject(conversationID int64) string {
	return fmt.Sprintf("%s.%d.leidos", subjectPrefix, conversationID)
}

// Channel implements transport.Channel over NATS. Each subscription dials
// its own connection and presents the session token as the connection
// credential; that is the out-of-band authorization handshake. A broker
// that is absent or rejects the dial degrades delivery to polling without
// any user-visible error.
type Channel struct {
	url    string
	logger *logger.Logger
}

// NewChannel creates a NATS-backed push channel for the given broker URL.
func NewChannel(url string, log *logger.Logger) *Channel {
	return &Channel{url: url, logger: log}
}

// Subscribe joins the conversation's private topics.
func (c *Channel) Subscribe(conversationID int64, token string, handlers transport.Handlers) (transport.Subscription, error) {
	conn, err := nats.Connect(c.url,
		nats.Token(token),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			c.logger.Warn("realtime channel disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("realtime channel reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect realtime channel: %w", err)
	}

	msgSub, err := conn.Subscribe(MessageSubject(conversationID), func(m *nats.Msg) {
		var event transport.MessageEvent
		if err := json.Unmarshal(m.Data, &event); err != nil {
			c.emitError(handlers, fmt.Errorf("decode message event: %w", err))
			return
		}
		if event.Mensaje == "" || event.Emisor == "" {
			c.emitError(handlers, fmt.Errorf("message event missing emisor or mensaje"))
			return
		}
		if handlers.OnMessage != nil {
			handlers.OnMessage(event)
		}
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", MessageSubject(conversationID), err)
	}

	readSub, err := conn.Subscribe(ReadSubject(conversationID), func(m *nats.Msg) {
		var event transport.ReadEvent
		if err := json.Unmarshal(m.Data, &event); err != nil {
			c.emitError(handlers, fmt.Errorf("decode read event: %w", err))
			return
		}
		if event.ConversacionID == 0 {
			c.emitError(handlers, fmt.Errorf("read event missing conversacion_id"))
			return
		}
		if handlers.OnRead != nil {
			handlers.OnRead(event)
		}
	})
	if err != nil {
		msgSub.Unsubscribe()
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ReadSubject(conversationID), err)
	}

	return &subscription{conn: conn, subs: []*nats.Subscription{msgSub, readSub}}, nil
}

func (c *Channel) emitError(handlers transport.Handlers, err error) {
	if handlers.OnError != nil {
		handlers.OnError(err)
		return
	}
	c.logger.Warn("realtime event dropped", zap.Error(err))
}

type subscription struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

func (s *subscription) Unsubscribe() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.conn.Close()
}
