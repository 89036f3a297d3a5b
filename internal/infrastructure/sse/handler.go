// Package sse streams runtime events to browsers via Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/felixgeelhaar/agentflow/pkg/domain/events"
)

// Handler streams dispatcher events over SSE. Slow clients drop events
// rather than blocking the dispatcher.
type Handler struct {
	mu      sync.RWMutex
	clients map[chan events.Event]struct{}
}

// NewHandler creates an SSE handler subscribed to the dispatcher with a
// wildcard registration.
func NewHandler(dispatcher *events.Dispatcher) *Handler {
	h := &Handler{clients: make(map[chan events.Event]struct{})}

	dispatcher.Register("sse", func(ctx context.Context, e events.Event) error {
		h.mu.RLock()
		defer h.mu.RUnlock()
		for ch := range h.clients {
			select {
			case ch <- e:
			default:
			}
		}
		return nil
	}, "*")

	return h
}

// ServeHTTP handles SSE connections. Clients can filter with a
// comma-separated "types" query parameter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	typeFilter := make(map[string]bool)
	if types := r.URL.Query().Get("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			typeFilter[strings.TrimSpace(t)] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := make(chan events.Event, 64)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			if len(typeFilter) > 0 && !typeFilter[event.EventType()] {
				continue
			}

			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\n", event.EventType())
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
