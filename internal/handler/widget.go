// Package handler provides HTTP handlers for the widget gateway.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmc-digital/chat-session-engine/internal/middleware"
	"github.com/dmc-digital/chat-session-engine/internal/model"
	"github.com/dmc-digital/chat-session-engine/internal/service"
	"github.com/dmc-digital/chat-session-engine/internal/widget"
	"github.com/dmc-digital/chat-session-engine/pkg/logger"
)

// WidgetHandler exposes the conversation controller operations over HTTP
// so a browser shell can drive a hosted widget session.
type WidgetHandler struct {
	manager *service.Manager
	logger  *logger.Logger
}

// NewWidgetHandler creates a new widget handler.
func NewWidgetHandler(manager *service.Manager, log *logger.Logger) *WidgetHandler {
	return &WidgetHandler{
		manager: manager,
		logger:  log,
	}
}

// OpenResponse is returned when a widget session is opened.
type OpenResponse struct {
	SessionID string                `json:"session_id"`
	State     model.SessionSnapshot `json:"state"`
}

// SelectMenuRequest names the clicked root menu for the optimistic echo.
type SelectMenuRequest struct {
	Title string `json:"title"`
}

// SelectOptionRequest names the clicked option for the optimistic echo.
type SelectOptionRequest struct {
	Label string `json:"label"`
}

// SendMessageRequest is the request to send a chat message.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// Open handles POST /api/v1/widget
func (h *WidgetHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	visitorKey := middleware.GetVisitorID(ctx)

	id, controller := h.manager.Open(ctx, visitorKey)

	writeJSON(w, http.StatusCreated, OpenResponse{
		SessionID: id,
		State:     controller.Snapshot(),
	})
}

// State handles GET /api/v1/widget/{id}
func (h *WidgetHandler) State(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, controller.Snapshot())
}

// SelectMenu handles POST /api/v1/widget/{id}/menus/{menuID}
func (h *WidgetHandler) SelectMenu(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	menuID, err := strconv.ParseInt(chi.URLParam(r, "menuID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid menu id")
		return
	}

	var req SelectMenuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	controller.SelectMenu(r.Context(), model.Menu{ID: menuID, Title: req.Title})
	writeJSON(w, http.StatusOK, controller.Snapshot())
}

// SelectOption handles POST /api/v1/widget/{id}/options/{optionID}
func (h *WidgetHandler) SelectOption(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	optionID, err := strconv.ParseInt(chi.URLParam(r, "optionID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid option id")
		return
	}

	var req SelectOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	controller.SelectOption(r.Context(), model.Option{ID: optionID, Label: req.Label})
	writeJSON(w, http.StatusOK, controller.Snapshot())
}

// GoBack handles POST /api/v1/widget/{id}/back
func (h *WidgetHandler) GoBack(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	controller.GoBack()
	writeJSON(w, http.StatusOK, controller.Snapshot())
}

// SendMessage handles POST /api/v1/widget/{id}/messages
func (h *WidgetHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	controller.SendMessage(r.Context(), req.Text)
	writeJSON(w, http.StatusOK, controller.Snapshot())
}

// Finalize handles POST /api/v1/widget/{id}/finalize
func (h *WidgetHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	controller.Finalize(r.Context())
	writeJSON(w, http.StatusOK, controller.Snapshot())
}

// Restart handles POST /api/v1/widget/{id}/restart
func (h *WidgetHandler) Restart(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	controller.Restart(r.Context())
	writeJSON(w, http.StatusOK, controller.Snapshot())
}

// Close handles DELETE /api/v1/widget/{id}
func (h *WidgetHandler) Close(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateWidgetID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.manager.Close(id); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "widget session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to close widget session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WidgetHandler) controller(w http.ResponseWriter, r *http.Request) (*widget.Controller, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateWidgetID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	controller, err := h.manager.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "widget session not found")
		return nil, false
	}

	return controller, true
}
