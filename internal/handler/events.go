package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmc-digital/chat-session-engine/pkg/metrics"
)

// Events handles GET /api/v1/widget/{id}/events
// Streams session snapshots over SSE whenever state changes, so the shell
// re-renders without polling the gateway.
func (h *WidgetHandler) Events(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	done := r.Context().Done()

	// Initial snapshot so the shell renders immediately.
	sendSSEEvent(w, flusher, "state", controller.Snapshot())

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		changed := controller.Changed()

		select {
		case <-done:
			return

		case <-changed:
			sendSSEEvent(w, flusher, "state", controller.Snapshot())

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
