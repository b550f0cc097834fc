// Package model defines data structures for the chat session engine.
package model

// Mode is the widget operating mode. An empty mode means no live session.
type Mode string

const (
	ModeNone     Mode = ""
	ModeBot      Mode = "bot"
	ModeOperator Mode = "operador"
)

// Menu is a bot menu as served by the conversation API.
type Menu struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
	Slug  string `json:"slug"`
	State string `json:"state"`
}

// Option is a selectable entry inside a bot menu.
type Option struct {
	ID                 int64  `json:"id"`
	MenuID             int64  `json:"menu_id"`
	Label              string `json:"label"`
	NextMenuID         *int64 `json:"next_menu_id,omitempty"`
	Order              int    `json:"order"`
	Slug               string `json:"slug"`
	TransferToOperator bool   `json:"transfer_to_operator"`
	State              string `json:"state"`
}

// BotResponse is one canned reply attached to a bot option.
type BotResponse struct {
	ID       int64  `json:"id"`
	OptionID int64  `json:"option_id"`
	Text     string `json:"text"`
	Type     string `json:"type"`
	Order    int    `json:"order"`
}

// MenuFrame is a snapshot of a menu and its options taken at navigation
// time. Frames are pushed by value so a later option reload cannot mutate
// an already-stacked frame.
type MenuFrame struct {
	Menu    Menu     `json:"menu"`
	Options []Option `json:"options"`
}

// SessionSnapshot is the read view of the session handed to the
// presentation shell. It is a value copy; mutating it has no effect on the
// live session.
type SessionSnapshot struct {
	Mode             Mode      `json:"mode"`
	Token            string    `json:"-"`
	ConversationID   *int64    `json:"conversation_id,omitempty"`
	BusinessHours    bool      `json:"business_hours"`
	RootMenus        []Menu    `json:"root_menus"`
	CurrentMenu      *Menu     `json:"current_menu,omitempty"`
	CurrentOptions   []Option  `json:"current_options"`
	MenuStackDepth   int       `json:"menu_stack_depth"`
	Messages         []Message `json:"messages"`
	Finalized        bool      `json:"finalized"`
	AwaitingOperator bool      `json:"awaiting_operator"`
	Initializing     bool      `json:"initializing"`
	Sending          bool      `json:"sending"`
	Finalizing       bool      `json:"finalizing"`
	LoadingMenuID    *int64    `json:"loading_menu_id,omitempty"`
	LoadingOptionID  *int64    `json:"loading_option_id,omitempty"`
	RealtimeActive   bool      `json:"realtime_active"`
	Error            string    `json:"error,omitempty"`
	Revision         uint64    `json:"revision"`
}

// HasToken reports whether the snapshot carries a session credential.
func (s *SessionSnapshot) HasToken() bool {
	return s.Token != ""
}
