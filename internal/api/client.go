// Package api is the request/response client for the upstream conversation
// service. Every call is authenticated by an optional opaque session token
// sent in the X-Chat-Token header.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dmc-digital/chat-session-engine/pkg/logger"
	"github.com/dmc-digital/chat-session-engine/pkg/metrics"
)

const (
	chatPrefix      = "/chat"
	tokenHeaderName = "X-Chat-Token"
)

// Client calls the conversation API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a conversation API client. baseURL should point at the
// public API root (the /chat prefix is appended per call).
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// Initialize starts or resumes a session. An empty token asks the service
// for a fresh bot session.
func (c *Client) Initialize(ctx context.Context, token string) (*InitializeData, error) {
	var data InitializeData
	if err := c.post(ctx, "/inicializar", token, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// MenuOptions fetches a bot menu together with its options.
func (c *Client) MenuOptions(ctx context.Context, menuID int64, token string) (*MenuOptionsData, error) {
	form := url.Values{"bot_menu_id": {strconv.FormatInt(menuID, 10)}}

	var data MenuOptionsData
	if err := c.post(ctx, "/menus-opciones", token, form, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SelectOption submits a bot option selection.
func (c *Client) SelectOption(ctx context.Context, optionID int64, token string) (*SelectOptionData, error) {
	form := url.Values{"bot_opcion_id": {strconv.FormatInt(optionID, 10)}}

	var data SelectOptionData
	if err := c.post(ctx, "/opcion-seleccionar", token, form, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SendMessage stores a client message. The token is required by the
// service; callers enforce its presence before reaching the network.
func (c *Client) SendMessage(ctx context.Context, text, token string) (*SendMessageData, error) {
	form := url.Values{"mensaje": {text}}

	var data SendMessageData
	if err := c.post(ctx, "/enviar-mensaje", token, form, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Finalize closes the session on the server.
func (c *Client) Finalize(ctx context.Context, token string) (*FinalizeData, error) {
	var data FinalizeData
	if err := c.post(ctx, "/finalizar", token, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) post(ctx context.Context, path, token string, form url.Values, out any) error {
	ctx, span := otel.Tracer("chat-api").Start(ctx, "chat"+path)
	defer span.End()
	span.SetAttributes(attribute.Bool("chat.has_token", token != ""))

	var body string
	if form != nil {
		body = form.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPrefix+path, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set(tokenHeaderName, token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(path, "network_error", time.Since(start).Seconds())
		return fmt.Errorf("chat api %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		metrics.RecordAPICall(path, "bad_json", time.Since(start).Seconds())
		return &Error{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Invalid JSON response from %s%s", chatPrefix, path),
		}
	}

	if resp.StatusCode >= 300 || env.ConError {
		message := "Chat API request failed"
		if env.Mensaje != nil && *env.Mensaje != "" {
			message = *env.Mensaje
		}

		metrics.RecordAPICall(path, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
		c.logger.Warn("chat api call failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", message),
		)

		return &Error{
			Status:  resp.StatusCode,
			Message: message,
			Detail:  env.MensajeTecnico,
		}
	}

	metrics.RecordAPICall(path, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s payload: %w", path, err)
		}
	}

	return nil
}
