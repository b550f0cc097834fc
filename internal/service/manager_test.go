package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmc-digital/chat-session-engine/internal/api"
	"github.com/dmc-digital/chat-session-engine/internal/model"
	"github.com/dmc-digital/chat-session-engine/pkg/logger"
)

// stubConversation answers every initialize with a fresh bot session.
type stubConversation struct{}

func (stubConversation) Initialize(ctx context.Context, token string) (*api.InitializeData, error) {
	return &api.InitializeData{
		Modo:             "bot",
		EsHorarioLaboral: true,
		MenusIniciales:   []api.Menu{{ID: 1, Titulo: "Ventas"}},
	}, nil
}

func (stubConversation) MenuOptions(ctx context.Context, menuID int64, token string) (*api.MenuOptionsData, error) {
	return nil, errors.New("not implemented")
}

func (stubConversation) SelectOption(ctx context.Context, optionID int64, token string) (*api.SelectOptionData, error) {
	return nil, errors.New("not implemented")
}

func (stubConversation) SendMessage(ctx context.Context, text, token string) (*api.SendMessageData, error) {
	return nil, errors.New("not implemented")
}

func (stubConversation) Finalize(ctx context.Context, token string) (*api.FinalizeData, error) {
	return nil, errors.New("not implemented")
}

func newTestManager() *Manager {
	return NewManager(ManagerConfig{
		Conversation: stubConversation{},
		PollInterval: time.Minute,
		Logger:       logger.NewNop(),
	})
}

func TestManagerOpenGetClose(t *testing.T) {
	m := newTestManager()

	id, controller := m.Open(context.Background(), "visitor-a")
	if id == "" {
		t.Fatal("open returned empty session id")
	}
	if controller.Snapshot().Mode != model.ModeBot {
		t.Fatal("session should be initialized on open")
	}
	if m.Count() != 1 {
		t.Fatalf("count = %d, want 1", m.Count())
	}

	got, err := m.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != controller {
		t.Fatal("Get returned a different controller")
	}

	if _, err := m.Get("2a9d1c2e-0000-7000-8000-000000000000"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown id error = %v, want ErrSessionNotFound", err)
	}

	if err := m.Close(id); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.Count() != 0 {
		t.Fatalf("count after close = %d, want 0", m.Count())
	}
	if err := m.Close(id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("double close error = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerSessionIDsAreUnique(t *testing.T) {
	m := newTestManager()

	first, _ := m.Open(context.Background(), "visitor-a")
	second, _ := m.Open(context.Background(), "visitor-a")

	if first == second {
		t.Fatalf("duplicate session id %q", first)
	}
	if m.Count() != 2 {
		t.Fatalf("count = %d, want 2", m.Count())
	}

	m.Close(first)
	m.Close(second)
}

func TestManagerSweepDropsIdleSessions(t *testing.T) {
	m := newTestManager()

	idle, _ := m.Open(context.Background(), "visitor-a")
	fresh, _ := m.Open(context.Background(), "visitor-b")

	m.mu.Lock()
	m.entries[idle].lastSeen = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	if swept := m.Sweep(30 * time.Minute); swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	if _, err := m.Get(idle); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("idle session should be gone, err = %v", err)
	}
	if _, err := m.Get(fresh); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}

	m.Close(fresh)
}

func TestManagerGetRefreshesIdleClock(t *testing.T) {
	m := newTestManager()

	id, _ := m.Open(context.Background(), "visitor-a")

	m.mu.Lock()
	m.entries[id].lastSeen = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	if _, err := m.Get(id); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if swept := m.Sweep(30 * time.Minute); swept != 0 {
		t.Fatalf("recently accessed session was swept (%d)", swept)
	}

	m.Close(id)
}
