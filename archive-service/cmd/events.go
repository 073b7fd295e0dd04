package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/redhat-et/script-archive/archive-service/internal/lifecycle"
	"github.com/redhat-et/script-archive/pkg/auth"
	"github.com/redhat-et/script-archive/pkg/logger"
)

// eventHub streams lifecycle notifications and session changes to browsers
// over server-sent events. Slow clients drop messages rather than block the
// operation that produced them.
type eventHub struct {
	mu      sync.Mutex
	clients map[chan string]bool
	log     *logger.Logger
}

func newEventHub(log *logger.Logger) *eventHub {
	return &eventHub{clients: make(map[chan string]bool), log: log}
}

// Notify implements lifecycle.Notifier.
func (h *eventHub) Notify(n lifecycle.Notification) {
	h.broadcast(map[string]any{
		"type":         "notification",
		"notification": n,
	})
}

// SessionChanged forwards connect and disconnect events.
func (h *eventHub) SessionChanged(ev auth.Event) {
	h.broadcast(map[string]any{
		"type":      "session",
		"account":   ev.Account,
		"connected": ev.Connected,
	})
}

func (h *eventHub) broadcast(event map[string]any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("Failed to encode event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for clientChan := range h.clients {
		select {
		case clientChan <- string(data):
		default:
			// Client buffer full, skip
		}
	}
}

func (h *eventHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP holds the connection open and writes one data frame per event.
func (h *eventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.log.Error("SSE not supported by response writer")
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan string, 10)

	h.mu.Lock()
	h.clients[clientChan] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("SSE client connected", "remote", r.RemoteAddr, "total_clients", total)

	defer func() {
		h.mu.Lock()
		delete(h.clients, clientChan)
		remaining := len(h.clients)
		h.mu.Unlock()
		h.log.Debug("SSE client disconnected", "remote", r.RemoteAddr, "remaining_clients", remaining)
	}()

	fmt.Fprintf(w, "data: %s\n\n", `{"type":"connected"}`)
	flusher.Flush()

	for {
		select {
		case msg := <-clientChan:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
