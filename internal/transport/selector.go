package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dmc-digital/chat-session-engine/internal/model"
	"github.com/dmc-digital/chat-session-engine/pkg/logger"
	"github.com/dmc-digital/chat-session-engine/pkg/metrics"
)

// Syncer is the controller-side surface the selector drives. PollSnapshot
// performs one snapshot reconciliation including its own error recovery;
// the realtime handlers merge push events into session state.
type Syncer interface {
	PollSnapshot(ctx context.Context)
	HandleRealtimeMessage(event MessageEvent)
	HandleMessagesRead(event ReadEvent)
	SetRealtimeActive(active bool)
}

// State is the session slice the selector decides on.
type State struct {
	Open           bool
	Mode           model.Mode
	Token          string
	ConversationID *int64
}

func (s State) pushKey() string {
	if s.ConversationID == nil {
		return ""
	}
	return fmt.Sprintf("%s|%s|%d", s.Mode, s.Token, *s.ConversationID)
}

// Selector keeps exactly one freshness strategy active: the push channel
// when a subscription can be established, interval polling otherwise.
// Switching strategies fully tears down the previous one first, so the
// session never sees dual delivery.
type Selector struct {
	channel  Channel
	syncer   Syncer
	interval time.Duration
	logger   *logger.Logger

	mu       sync.Mutex
	sub      Subscription
	subKey   string
	pollStop context.CancelFunc
}

// NewSelector creates a selector. channel may be nil when no realtime
// infrastructure is configured; delivery then always polls.
func NewSelector(channel Channel, syncer Syncer, interval time.Duration, log *logger.Logger) *Selector {
	return &Selector{
		channel:  channel,
		syncer:   syncer,
		interval: interval,
		logger:   log,
	}
}

// Sync re-evaluates the delivery strategy against the given session state.
// The controller calls it after every state mutation that can affect
// eligibility (open/close, mode, token, conversation id).
func (s *Selector) Sync(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Background delivery only runs for an open operator session with a
	// token. Bot mode is fully request-driven.
	if !state.Open || state.Mode != model.ModeOperator || state.Token == "" {
		s.teardownSubLocked()
		s.stopPollingLocked()
		return
	}

	if key := state.pushKey(); key != "" && s.channel != nil {
		if s.sub != nil && s.subKey == key {
			s.stopPollingLocked()
			return
		}

		s.teardownSubLocked()

		sub, err := s.channel.Subscribe(*state.ConversationID, state.Token, Handlers{
			OnMessage: func(event MessageEvent) {
				metrics.PushEvents.WithLabelValues("message").Inc()
				s.syncer.HandleRealtimeMessage(event)
			},
			OnRead: func(event ReadEvent) {
				metrics.PushEvents.WithLabelValues("read").Inc()
				s.syncer.HandleMessagesRead(event)
			},
			OnError: func(err error) {
				s.logger.Warn("realtime channel error, staying on API delivery", zap.Error(err))
			},
		})
		if err == nil {
			s.sub = sub
			s.subKey = key
			s.syncer.SetRealtimeActive(true)
			s.stopPollingLocked()
			metrics.TransportSwitches.WithLabelValues("push").Inc()
			return
		}

		s.logger.Warn("realtime subscription unavailable, falling back to polling", zap.Error(err))
	}

	s.teardownSubLocked()
	s.startPollingLocked()
}

// Stop tears down whichever strategy is active.
func (s *Selector) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownSubLocked()
	s.stopPollingLocked()
}

func (s *Selector) teardownSubLocked() {
	if s.sub == nil {
		return
	}
	s.sub.Unsubscribe()
	s.sub = nil
	s.subKey = ""
	s.syncer.SetRealtimeActive(false)
}

func (s *Selector) startPollingLocked() {
	if s.pollStop != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.pollStop = cancel
	metrics.TransportSwitches.WithLabelValues("poll").Inc()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.syncer.PollSnapshot(ctx)
			}
		}
	}()
}

func (s *Selector) stopPollingLocked() {
	if s.pollStop == nil {
		return
	}
	s.pollStop()
	s.pollStop = nil
}
