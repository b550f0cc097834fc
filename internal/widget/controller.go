// Package widget implements the conversation controller: the state machine
// that drives one embedded support chat session against the conversation
// API and the realtime push channel.
package widget

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dmc-digital/chat-session-engine/internal/api"
	"github.com/dmc-digital/chat-session-engine/internal/model"
	"github.com/dmc-digital/chat-session-engine/internal/normalize"
	"github.com/dmc-digital/chat-session-engine/internal/session"
	"github.com/dmc-digital/chat-session-engine/internal/tokenstore"
	"github.com/dmc-digital/chat-session-engine/internal/transport"
	"github.com/dmc-digital/chat-session-engine/pkg/logger"
	"github.com/dmc-digital/chat-session-engine/pkg/metrics"
)

// User-visible notices. Spanish, matching the production site copy.
const (
	noticePreviousSessionExpired = "Tu sesión anterior expiró. Iniciamos una nueva conversación."
	noticeSessionExpired         = "Tu sesión expiró. Iniciamos una conversación nueva."
	noticeSendWithoutToken       = "La sesión del chat expiró. Inicia una nueva conversación."
	noticeTransferring           = "Estamos transfiriendo tu conversación con un operador."
	noticeContinueOptions        = "Puedes continuar con las siguientes opciones."
	noticeBackPrevious           = "Volviste al menú anterior."
	noticeBackRoot               = "Volviste al menú principal."

	menuPromptFormat = "Perfecto. Ahora elige una opción de %q."
)

// DefaultPollInterval is the snapshot poll cadence when push delivery is
// not available.
const DefaultPollInterval = 18 * time.Second

// Conversation is the request/response surface of the upstream chat
// service. An empty token means unauthenticated.
type Conversation interface {
	Initialize(ctx context.Context, token string) (*api.InitializeData, error)
	MenuOptions(ctx context.Context, menuID int64, token string) (*api.MenuOptionsData, error)
	SelectOption(ctx context.Context, optionID int64, token string) (*api.SelectOptionData, error)
	SendMessage(ctx context.Context, text, token string) (*api.SendMessageData, error)
	Finalize(ctx context.Context, token string) (*api.FinalizeData, error)
}

// Config assembles a controller.
type Config struct {
	Conversation Conversation
	Tokens       tokenstore.Store
	Channel      transport.Channel
	PollInterval time.Duration
	Welcome      WelcomePolicy
	Logger       *logger.Logger
	Now          func() time.Time
}

// Controller orchestrates the session lifecycle: initialize, traverse bot
// menus, send operator messages, finalize, restart. Every API failure is
// caught here; nothing reaches the presentation shell except the session
// snapshot and one optional error string.
type Controller struct {
	store    *session.Store
	conv     Conversation
	tokens   tokenstore.Store
	selector *transport.Selector
	welcome  WelcomePolicy
	logger   *logger.Logger
	now      func() time.Time

	mu   sync.Mutex
	open bool
}

// NewController creates a controller with a fresh session store.
func NewController(cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Welcome.Needed == nil {
		cfg.Welcome = DefaultWelcomePolicy()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Global()
	}

	c := &Controller{
		store:   session.New(),
		conv:    cfg.Conversation,
		tokens:  cfg.Tokens,
		welcome: cfg.Welcome,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
	c.selector = transport.NewSelector(cfg.Channel, c, cfg.PollInterval, cfg.Logger)

	return c
}

// Snapshot returns the current session state for rendering.
func (c *Controller) Snapshot() model.SessionSnapshot {
	return c.store.Snapshot()
}

// Changed exposes the store's change notification for state streaming.
func (c *Controller) Changed() <-chan struct{} {
	return c.store.Changed()
}

// Open marks the widget open and initializes the session. Reopening an
// already-open widget is a no-op.
func (c *Controller) Open(ctx context.Context) {
	c.mu.Lock()
	if c.open {
		c.mu.Unlock()
		return
	}
	c.open = true
	c.mu.Unlock()

	metrics.SessionsActive.Inc()
	c.Initialize(ctx, false)
}

// Close marks the widget closed and tears down background delivery.
// In-flight requests are not cancelled; their results are discarded by the
// liveness check when they resolve.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.open = false
	c.mu.Unlock()

	c.selector.Stop()
	metrics.SessionsActive.Dec()
}

func (c *Controller) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Controller) syncTransport() {
	snap := c.store.Snapshot()
	c.selector.Sync(transport.State{
		Open:           c.alive(),
		Mode:           snap.Mode,
		Token:          snap.Token,
		ConversationID: snap.ConversationID,
	})
}

// persistToken updates both session state and durable storage. An empty
// token clears storage. Token rotation is monotonic, so last write wins.
func (c *Controller) persistToken(token string) {
	c.store.SetToken(token)

	var err error
	if token == "" {
		err = c.tokens.Clear()
	} else {
		err = c.tokens.Save(token)
	}
	if err != nil {
		c.logger.Warn("token persistence failed", zap.Error(err))
	}
}

// applyInitialized installs a full server session: mode, business hours,
// root menus and normalized history, with the welcome injected when the
// policy asks for it.
func (c *Controller) applyInitialized(data *api.InitializeData) {
	mode := api.ParseMode(data.Modo)
	history := normalize.FromHistoryList(data.Historial, c.now)

	if mode == model.ModeBot && c.welcome.Needed(history) {
		welcome := normalize.NewSystemMessage(c.welcome.Message, model.KindSystem, c.now)
		history = normalize.Merge(history, []model.Message{welcome})
	}

	c.store.ApplyInitialized(mode, data.EsHorarioLaboral, data.Menus(), history)
	metrics.MessagesMerged.WithLabelValues("history").Add(float64(len(history)))

	// The token only matters for operator sessions; bot sessions are
	// anonymous and must not leave a stale credential behind.
	switch {
	case mode == model.ModeOperator && data.Token != nil && *data.Token != "":
		c.persistToken(*data.Token)
	case mode == model.ModeBot:
		c.persistToken("")
	}
}

// Initialize starts or resumes the session. Unless forceFresh, the
// persisted token is presented; if the service rejects it as a token error
// the token is cleared and initialization retries exactly once without
// one. Any further failure surfaces as a user-visible error.
func (c *Controller) Initialize(ctx context.Context, forceFresh bool) {
	c.store.SetInitializing(true)
	c.store.ClearError()

	existing := ""
	if !forceFresh {
		stored, err := c.tokens.Load()
		if err != nil {
			c.logger.Warn("token load failed", zap.Error(err))
		}
		existing = stored
		c.store.SetToken(existing)
	}

	data, err := c.conv.Initialize(ctx, existing)
	switch {
	case err == nil:
		if c.alive() {
			c.applyInitialized(data)
		}

	case existing != "" && api.IsTokenError(err):
		c.persistToken("")
		metrics.TokenRecoveries.Inc()

		fallback, retryErr := c.conv.Initialize(ctx, "")
		if !c.alive() {
			break
		}
		if retryErr != nil {
			c.store.SetError(api.UserMessage(retryErr))
			break
		}
		c.applyInitialized(fallback)
		c.store.SetError(noticePreviousSessionExpired)

	default:
		if c.alive() {
			c.store.SetError(api.UserMessage(err))
		}
	}

	c.store.SetInitializing(false)
	c.syncTransport()
}

// SelectMenu loads the options of a root menu. The user's click is echoed
// optimistically so the UI never appears to swallow it. Concurrent
// selections are not deduplicated here; the shell disables controls via
// the per-item loading id.
func (c *Controller) SelectMenu(ctx context.Context, menu model.Menu) {
	if !c.alive() {
		return
	}

	menuID := menu.ID
	c.store.SetLoadingMenu(&menuID)
	c.store.ClearError()
	c.mergeLocal(normalize.NewLocalClientMessage(menu.Title, model.KindBotMenuSelection, c.now))

	data, err := c.conv.MenuOptions(ctx, menu.ID, c.store.Token())
	if c.alive() {
		if err != nil {
			c.store.SetError(api.UserMessage(err))
		} else {
			c.store.EnterMenu(data.Menu.ToModel(), data.Options())
			prompt := normalize.NewSystemMessage(fmt.Sprintf(menuPromptFormat, data.Titulo), model.KindBotResponse, c.now)
			c.mergeLocal(prompt)
		}
	}

	c.store.SetLoadingMenu(nil)
}

// SelectOption submits an option. The response may carry bot replies, a
// transfer-to-operator flag, or a next menu to advance into.
func (c *Controller) SelectOption(ctx context.Context, option model.Option) {
	if !c.alive() {
		return
	}

	optionID := option.ID
	c.store.SetLoadingOption(&optionID)
	c.store.ClearError()
	c.mergeLocal(normalize.NewLocalClientMessage(option.Label, model.KindBotMenuSelection, c.now))

	data, err := c.conv.SelectOption(ctx, option.ID, c.store.Token())
	if err != nil {
		if c.alive() {
			c.store.SetError(api.UserMessage(err))
		}
		c.store.SetLoadingOption(nil)
		return
	}

	if !c.alive() {
		c.store.SetLoadingOption(nil)
		return
	}

	if len(data.Respuestas) > 0 {
		responses := make([]model.Message, 0, len(data.Respuestas))
		for _, r := range data.Respuestas {
			responses = append(responses, normalize.FromBotResponse(r, option.ID, c.now))
		}
		c.store.MergeMessages(responses)
		metrics.MessagesMerged.WithLabelValues("bot_response").Add(float64(len(responses)))
	}

	if data.TransferirAOperador == 1 {
		c.mergeLocal(normalize.NewSystemMessage(noticeTransferring, model.KindSystem, c.now))
		c.store.SetAwaitingOperator(true)
		c.store.SetLoadingOption(nil)
		c.Initialize(ctx, false)
		return
	}

	if data.SiguienteMenuID != nil {
		next, menuErr := c.conv.MenuOptions(ctx, *data.SiguienteMenuID, c.store.Token())
		if c.alive() {
			if menuErr != nil {
				c.store.SetError(api.UserMessage(menuErr))
			} else {
				c.store.AdvanceMenu(next.Menu.ToModel(), next.Options())
				c.mergeLocal(normalize.NewSystemMessage(noticeContinueOptions, model.KindSystem, c.now))
			}
		}
	}

	c.store.SetLoadingOption(nil)
}

// GoBack pops the menu stack, or returns to the root menu list when the
// stack is empty. Illegal while a selection is in flight.
func (c *Controller) GoBack() {
	if !c.alive() || c.store.SelectionInFlight() {
		return
	}

	c.store.ClearError()

	atRoot, changed := c.store.GoBack()
	if !changed {
		return
	}

	notice := noticeBackPrevious
	if atRoot {
		notice = noticeBackRoot
	}
	c.mergeLocal(normalize.NewSystemMessage(notice, model.KindBotResponse, c.now))
}

// SendMessage stores a client message with the service. Blank input and
// overlapping sends are no-ops; a send without a token can never succeed,
// so it finalizes the session with an explanatory notice instead of
// reaching the network.
func (c *Controller) SendMessage(ctx context.Context, text string) {
	snap := c.store.Snapshot()
	if snap.Sending {
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if !snap.HasToken() {
		c.store.SetError(noticeSendWithoutToken)
		c.store.MarkFinalized()
		return
	}

	c.store.SetSending(true)
	c.store.ClearError()

	data, err := c.conv.SendMessage(ctx, text, snap.Token)
	if err != nil {
		c.recoverOrSurface(ctx, err)
		c.store.SetSending(false)
		c.syncTransport()
		return
	}

	if !c.alive() {
		c.store.SetSending(false)
		return
	}

	stored := normalize.FromHistory(data.NuevoMensaje, c.now)
	c.store.MergeMessages([]model.Message{stored})
	metrics.MessagesMerged.WithLabelValues("send").Inc()

	if data.MensajeBienvenida != "" && !c.hasSystemMessage(data.MensajeBienvenida) {
		c.mergeLocal(normalize.NewSystemMessage(data.MensajeBienvenida, model.KindSystem, c.now))
	}

	if data.Token != "" {
		c.persistToken(data.Token)
	}

	c.store.SetAwaitingOperator(data.EsperandoOperador)
	if mode := api.ParseMode(data.Modo); mode != model.ModeNone {
		c.store.SetMode(mode)
	}

	c.store.SetSending(false)
	c.syncTransport()
}

// Finalize closes the session with the service, appends the closing
// message when one is provided, and clears the token and bot navigation.
func (c *Controller) Finalize(ctx context.Context) {
	snap := c.store.Snapshot()
	if !snap.HasToken() || snap.Finalizing {
		return
	}

	c.store.SetFinalizing(true)
	c.store.ClearError()

	data, err := c.conv.Finalize(ctx, snap.Token)
	if err != nil {
		c.recoverOrSurface(ctx, err)
		c.store.SetFinalizing(false)
		c.syncTransport()
		return
	}

	if c.alive() {
		if data.Mensaje != "" {
			c.mergeLocal(normalize.NewSystemMessage(data.Mensaje, model.KindSystem, c.now))
		}
		c.persistToken("")
		c.store.Finalize()
	}

	c.store.SetFinalizing(false)
	c.syncTransport()
}

// Restart unconditionally wipes the session and starts over with a fresh
// initialization.
func (c *Controller) Restart(ctx context.Context) {
	c.persistToken("")
	c.store.ResetForRestart()
	c.Initialize(ctx, true)
}

// recoverOrSurface applies the error taxonomy for mutating calls: token
// errors clear the credential and force one re-initialization with a
// "session renewed" notice; anything else surfaces as a short error string
// without touching mode or token.
func (c *Controller) recoverOrSurface(ctx context.Context, err error) {
	if api.IsTokenError(err) {
		c.persistToken("")
		metrics.TokenRecoveries.Inc()
		c.Initialize(ctx, true)
		if c.alive() {
			c.store.SetError(noticeSessionExpired)
		}
		return
	}

	if c.alive() {
		c.store.SetError(api.UserMessage(err))
	}
}

func (c *Controller) hasSystemMessage(text string) bool {
	for _, m := range c.store.Snapshot().Messages {
		if m.Sender == model.SenderSystem && m.Text == text {
			return true
		}
	}
	return false
}

func (c *Controller) mergeLocal(msg model.Message) {
	c.store.MergeMessages([]model.Message{msg})
	metrics.MessagesMerged.WithLabelValues("local").Inc()
}

// PollSnapshot is one poll tick: re-fetch the session snapshot, merge its
// history, and run the full session-apply routine when the server reports
// a different mode. Token errors trigger forced re-initialization exactly
// once; other failures keep current state.
func (c *Controller) PollSnapshot(ctx context.Context) {
	snap := c.store.Snapshot()
	if !c.alive() || snap.Mode != model.ModeOperator || !snap.HasToken() {
		return
	}

	data, err := c.conv.Initialize(ctx, snap.Token)
	if err != nil {
		if api.IsTokenError(err) {
			metrics.PollTicks.WithLabelValues("token_error").Inc()
			c.persistToken("")
			metrics.TokenRecoveries.Inc()
			c.Initialize(ctx, true)
			if c.alive() {
				c.store.SetError(noticeSessionExpired)
			}
			return
		}

		metrics.PollTicks.WithLabelValues("error").Inc()
		c.logger.Debug("snapshot poll failed, keeping current state", zap.Error(err))
		return
	}

	if !c.alive() {
		return
	}

	if api.ParseMode(data.Modo) != snap.Mode {
		c.applyInitialized(data)
		metrics.PollTicks.WithLabelValues("mode_change").Inc()
		c.syncTransport()
		return
	}

	history := normalize.FromHistoryList(data.Historial, c.now)
	c.store.MergeMessages(history)
	metrics.MessagesMerged.WithLabelValues("poll").Add(float64(len(history)))
	c.store.SetBusinessHours(data.EsHorarioLaboral)
	metrics.PollTicks.WithLabelValues("ok").Inc()
	c.syncTransport()
}

// HandleRealtimeMessage merges one push-delivered message. An operator or
// system sender means the handoff has been answered.
func (c *Controller) HandleRealtimeMessage(event transport.MessageEvent) {
	if !c.alive() {
		return
	}

	msg := normalize.FromRealtime(event, c.now)
	c.store.MergeMessages([]model.Message{msg})
	metrics.MessagesMerged.WithLabelValues("push").Inc()

	if event.ConversacionID != nil {
		c.store.SetConversationID(*event.ConversacionID)
	}

	sender := model.Sender(event.Emisor)
	if sender == model.SenderOperator || sender == model.SenderSystem {
		c.store.SetAwaitingOperator(false)
	}

	c.syncTransport()
}

// HandleMessagesRead marks every client message of the conversation read.
func (c *Controller) HandleMessagesRead(event transport.ReadEvent) {
	if !c.alive() {
		return
	}
	c.store.MarkConversationRead(event.ConversacionID)
}

// SetRealtimeActive records push delivery liveness in session state.
func (c *Controller) SetRealtimeActive(active bool) {
	c.store.SetRealtimeActive(active)
}
