// Package service tracks the widget sessions hosted by the gateway.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmc-digital/chat-session-engine/internal/tokenstore"
	"github.com/dmc-digital/chat-session-engine/internal/transport"
	"github.com/dmc-digital/chat-session-engine/internal/widget"
	"github.com/dmc-digital/chat-session-engine/pkg/logger"
)

// ErrSessionNotFound is returned for unknown or expired widget sessions.
var ErrSessionNotFound = fmt.Errorf("widget session not found")

type entry struct {
	controller *widget.Controller
	visitorKey string
	lastSeen   time.Time
}

// Manager owns one conversation controller per open widget session.
// Sessions idle past the TTL are closed and dropped by the sweep loop.
type Manager struct {
	conversation widget.Conversation
	channel      transport.Channel
	tokens       *tokenstore.Registry
	pollInterval time.Duration
	welcome      widget.WelcomePolicy
	logger       *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// ManagerConfig assembles a Manager.
type ManagerConfig struct {
	Conversation widget.Conversation
	Channel      transport.Channel
	PollInterval time.Duration
	Welcome      widget.WelcomePolicy
	Logger       *logger.Logger
}

// NewManager creates an empty session manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		conversation: cfg.Conversation,
		channel:      cfg.Channel,
		tokens:       tokenstore.NewRegistry(),
		pollInterval: cfg.PollInterval,
		welcome:      cfg.Welcome,
		logger:       cfg.Logger,
		entries:      make(map[string]*entry),
	}
}

// Open creates a widget session for the visitor and initializes it. The
// visitor key scopes token persistence, so a returning visitor resumes an
// operator conversation across widget sessions.
func (m *Manager) Open(ctx context.Context, visitorKey string) (string, *widget.Controller) {
	id := uuid.Must(uuid.NewV7()).String()

	controller := widget.NewController(widget.Config{
		Conversation: m.conversation,
		Tokens:       m.tokens.Scoped(visitorKey),
		Channel:      m.channel,
		PollInterval: m.pollInterval,
		Welcome:      m.welcome,
		Logger:       m.logger.WithWidget(id),
	})

	m.mu.Lock()
	m.entries[id] = &entry{
		controller: controller,
		visitorKey: visitorKey,
		lastSeen:   time.Now(),
	}
	m.mu.Unlock()

	controller.Open(ctx)
	m.logger.Info("widget session opened",
		zap.String("widget_session_id", id),
		zap.String("visitor_key", visitorKey),
	)

	return id, controller
}

// Get returns the controller for a session id, refreshing its idle clock.
func (m *Manager) Get(id string) (*widget.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = time.Now()
	return e.controller, nil
}

// Close tears down and removes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	e.controller.Close()
	m.logger.Info("widget session closed", zap.String("widget_session_id", id))
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep closes sessions idle longer than ttl and returns how many were
// dropped.
func (m *Manager) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	var stale []*entry
	for id, e := range m.entries {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e)
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()

	for _, e := range stale {
		e.controller.Close()
	}

	if len(stale) > 0 {
		m.logger.Info("swept idle widget sessions", zap.Int("count", len(stale)))
	}

	return len(stale)
}

// RunSweeper sweeps on the given cadence until ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ttl)
		}
	}
}
