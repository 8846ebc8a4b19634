package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/inventory/internal/livequery"
)

// EventType represents the type of SSE event
type EventType string

const (
	EventConnected EventType = "connected"
	EventItems     EventType = "items"
	EventItem      EventType = "item"
	EventHeartbeat EventType = "heartbeat"
	EventClosed    EventType = "closed"
)

// HeartbeatInterval is how often idle streams receive a heartbeat event
var HeartbeatInterval = 30 * time.Second

// Event represents an SSE event to be sent to clients
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Stream writes every value from sub to the client as eventType until the
// client disconnects or the subscription ends. It closes sub on return.
func Stream[T any](w http.ResponseWriter, r *http.Request, sub *livequery.Subscription[T], eventType EventType) {
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	send := func(event Event) bool {
		data, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal SSE event")
			return false
		}
		if _, err := w.Write(formatSSEMessage(string(event.Type), data)); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(Event{Type: EventConnected, Data: map[string]any{
		"client_id": sub.ID(),
		"time":      time.Now().Unix(),
	}}) {
		return
	}

	log.Debug().Str("client_id", sub.ID()).Str("event_type", string(eventType)).Msg("SSE client connected")
	defer log.Debug().Str("client_id", sub.ID()).Msg("SSE client disconnected")

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case value, ok := <-sub.Updates():
			if !ok {
				reason := "stream ended"
				if err := sub.Err(); err != nil {
					reason = err.Error()
				}
				send(Event{Type: EventClosed, Data: map[string]any{"reason": reason}})
				return
			}
			if !send(Event{Type: eventType, Data: value}) {
				return
			}

		case <-heartbeat.C:
			if !send(Event{Type: EventHeartbeat, Data: map[string]any{"time": time.Now().Unix()}}) {
				return
			}
		}
	}
}

// formatSSEMessage formats an SSE message with event type and data
func formatSSEMessage(eventType string, data []byte) []byte {
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", eventType, data)
}
