package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/inventory/internal/config"
	"github.com/saltyorg/inventory/internal/web/sse"
)

const wsWriteWait = 10 * time.Second

// StreamItems streams the ordered item list as server-sent events
func (h *Handlers) StreamItems(w http.ResponseWriter, r *http.Request) {
	sse.Stream(w, r, h.dao.GetItems(r.Context()), sse.EventItems)
}

// StreamItem streams one item as server-sent events; data is null while it does not exist
func (h *Handlers) StreamItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.jsonError(w, "Invalid item ID", http.StatusBadRequest)
		return
	}
	sse.Stream(w, r, h.dao.GetItem(r.Context(), id), sse.EventItem)
}

// ItemsWebSocket streams the ordered item list over a WebSocket.
// Each message is an sse.Event envelope; client messages are ignored.
func (h *Handlers) ItemsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.dao.GetItems(ctx)
	defer sub.Close()

	log.Debug().Str("client_id", sub.ID()).Msg("WebSocket client connected")

	pingInterval := config.GetTimeouts().WebSocketPing
	_ = conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	})

	// Reader: needed to process pongs and notice the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("client_id", sub.ID()).Msg("WebSocket client disconnected")
			return

		case items, ok := <-sub.Updates():
			if !ok {
				reason := "stream ended"
				if err := sub.Err(); err != nil {
					reason = err.Error()
				}
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, reason),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(sse.Event{Type: sse.EventItems, Data: items}); err != nil {
				log.Debug().Err(err).Str("client_id", sub.ID()).Msg("WebSocket write failed")
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
