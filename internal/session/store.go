// Package session holds the mutable state of one widget session.
package session

import (
	"sync"

	"github.com/dmc-digital/chat-session-engine/internal/model"
	"github.com/dmc-digital/chat-session-engine/internal/normalize"
)

// Store is the single source of truth for a widget session. Handlers read
// it at invocation time and mutate it through narrow, total mutators; no
// mutator leaves the session half-updated.
type Store struct {
	mu sync.Mutex

	mode             model.Mode
	token            string
	conversationID   *int64
	businessHours    bool
	rootMenus        []model.Menu
	currentMenu      *model.Menu
	currentOptions   []model.Option
	menuStack        []model.MenuFrame
	messages         []model.Message
	finalized        bool
	awaitingOperator bool

	initializing    bool
	sending         bool
	finalizing      bool
	loadingMenuID   *int64
	loadingOptionID *int64
	realtimeActive  bool
	errMsg          string

	revision uint64
	changed  chan struct{}
}

// New creates an empty session store.
func New() *Store {
	return &Store{
		businessHours: true,
		changed:       make(chan struct{}),
	}
}

// bump must be called with the lock held after every visible change.
func (s *Store) bump() {
	s.revision++
	close(s.changed)
	s.changed = make(chan struct{})
}

// Changed returns a channel closed on the next state change. Callers take
// a fresh channel after each wakeup.
func (s *Store) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// ApplyInitialized replaces the session with a full server snapshot: mode,
// business hours, root menus and history. Bot navigation is reset and the
// awaiting-operator flag follows the mode.
func (s *Store) ApplyInitialized(mode model.Mode, businessHours bool, rootMenus []model.Menu, messages []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = mode
	s.businessHours = businessHours
	s.rootMenus = rootMenus
	s.currentMenu = nil
	s.currentOptions = nil
	s.menuStack = nil
	s.awaitingOperator = mode == model.ModeOperator
	s.finalized = false
	s.messages = messages
	s.conversationID = normalize.LatestConversationID(messages)
	s.bump()
}

// MergeMessages folds incoming messages into the session and refreshes the
// conversation id from the merged result.
func (s *Store) MergeMessages(incoming []model.Message) {
	if len(incoming) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = normalize.Merge(s.messages, incoming)
	if id := normalize.LatestConversationID(s.messages); id != nil {
		s.conversationID = id
	}
	s.bump()
}

// MarkConversationRead flags every client-sent message of the conversation
// as read.
func (s *Store) MarkConversationRead(conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = normalize.MarkConversationRead(s.messages, conversationID)
	s.bump()
}

// SetToken stores the session credential. An empty string means
// unauthenticated.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == token {
		return
	}
	s.token = token
	s.bump()
}

// Token returns the current session credential.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetMode changes the operating mode. Once the session is finalized the
// mode is pinned until an explicit restart.
func (s *Store) SetMode(mode model.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized || s.mode == mode {
		return
	}
	s.mode = mode
	s.bump()
}

// SetBusinessHours updates the business-hours flag from a snapshot.
func (s *Store) SetBusinessHours(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.businessHours == v {
		return
	}
	s.businessHours = v
	s.bump()
}

// SetAwaitingOperator updates the handoff flag.
func (s *Store) SetAwaitingOperator(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.awaitingOperator == v {
		return
	}
	s.awaitingOperator = v
	s.bump()
}

// SetConversationID records the conversation identity surfaced by a
// response or push event.
func (s *Store) SetConversationID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversationID != nil && *s.conversationID == id {
		return
	}
	s.conversationID = &id
	s.bump()
}

// EnterMenu makes menu the current one after a root-level selection. The
// navigation stack is cleared: root selections start a fresh path.
func (s *Store) EnterMenu(menu model.Menu, options []model.Option) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.menuStack = nil
	s.currentMenu = &menu
	s.currentOptions = options
	s.bump()
}

// AdvanceMenu moves to next, snapshotting the current menu and its options
// onto the stack. Nothing is pushed when there is no current menu or when
// next is the menu already shown.
func (s *Store) AdvanceMenu(next model.Menu, options []model.Option) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentMenu != nil && s.currentMenu.ID != next.ID {
		frame := model.MenuFrame{
			Menu:    *s.currentMenu,
			Options: append([]model.Option(nil), s.currentOptions...),
		}
		s.menuStack = append(s.menuStack, frame)
	}

	s.currentMenu = &next
	s.currentOptions = options
	s.bump()
}

// GoBack pops the navigation stack, restoring the previous menu and its
// snapshotted options. With an empty stack it returns to the root menu
// list. The second result reports whether anything changed.
func (s *Store) GoBack() (atRoot bool, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.menuStack) > 0 {
		frame := s.menuStack[len(s.menuStack)-1]
		s.menuStack = s.menuStack[:len(s.menuStack)-1]
		s.currentMenu = &frame.Menu
		s.currentOptions = frame.Options
		s.bump()
		return false, true
	}

	if s.currentMenu != nil {
		s.currentMenu = nil
		s.currentOptions = nil
		s.bump()
		return true, true
	}

	return true, false
}

// Finalize marks the session closed. No further sends are accepted until
// an explicit restart.
func (s *Store) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finalized = true
	s.awaitingOperator = false
	s.currentMenu = nil
	s.currentOptions = nil
	s.menuStack = nil
	s.bump()
}

// MarkFinalized sets only the finalized flag. Used when a send can never
// succeed (no token) and the session must stop accepting input.
func (s *Store) MarkFinalized() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return
	}
	s.finalized = true
	s.bump()
}

// ResetForRestart wipes messages, navigation, the finalized flag and the
// error ahead of a fresh initialization.
func (s *Store) ResetForRestart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.conversationID = nil
	s.currentMenu = nil
	s.currentOptions = nil
	s.menuStack = nil
	s.finalized = false
	s.errMsg = ""
	s.bump()
}

// SetError records a user-visible error string.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errMsg = msg
	s.bump()
}

// ClearError removes the user-visible error.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.errMsg == "" {
		return
	}
	s.errMsg = ""
	s.bump()
}

// SetInitializing toggles the initialize-in-flight flag.
func (s *Store) SetInitializing(v bool) { s.setFlag(&s.initializing, v) }

// SetSending toggles the send-in-flight flag.
func (s *Store) SetSending(v bool) { s.setFlag(&s.sending, v) }

// SetFinalizing toggles the finalize-in-flight flag.
func (s *Store) SetFinalizing(v bool) { s.setFlag(&s.finalizing, v) }

// SetRealtimeActive records whether push delivery is live.
func (s *Store) SetRealtimeActive(v bool) { s.setFlag(&s.realtimeActive, v) }

func (s *Store) setFlag(field *bool, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if *field == v {
		return
	}
	*field = v
	s.bump()
}

// SetLoadingMenu records which menu has a request in flight, nil for none.
func (s *Store) SetLoadingMenu(id *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadingMenuID = id
	s.bump()
}

// SetLoadingOption records which option has a request in flight.
func (s *Store) SetLoadingOption(id *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadingOptionID = id
	s.bump()
}

// SelectionInFlight reports whether a menu or option request is pending.
func (s *Store) SelectionInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingMenuID != nil || s.loadingOptionID != nil
}

// Snapshot returns a value copy of the session for readers. Slices are
// copied so the caller cannot mutate live state.
func (s *Store) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := model.SessionSnapshot{
		Mode:             s.mode,
		Token:            s.token,
		BusinessHours:    s.businessHours,
		RootMenus:        append([]model.Menu(nil), s.rootMenus...),
		CurrentOptions:   append([]model.Option(nil), s.currentOptions...),
		MenuStackDepth:   len(s.menuStack),
		Messages:         append([]model.Message(nil), s.messages...),
		Finalized:        s.finalized,
		AwaitingOperator: s.awaitingOperator,
		Initializing:     s.initializing,
		Sending:          s.sending,
		Finalizing:       s.finalizing,
		RealtimeActive:   s.realtimeActive,
		Error:            s.errMsg,
		Revision:         s.revision,
	}

	if s.conversationID != nil {
		id := *s.conversationID
		snap.ConversationID = &id
	}
	if s.currentMenu != nil {
		menu := *s.currentMenu
		snap.CurrentMenu = &menu
	}
	if s.loadingMenuID != nil {
		id := *s.loadingMenuID
		snap.LoadingMenuID = &id
	}
	if s.loadingOptionID != nil {
		id := *s.loadingOptionID
		snap.LoadingOptionID = &id
	}

	return snap
}
