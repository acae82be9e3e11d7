package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/quorum-wallet/interfaces"
)

const eventWriteTimeout = 5 * time.Second

// HandleEvents streams one topic of the event bus over a websocket. Each
// event is sent as a JSON text frame. Only events published after the
// connection was accepted are delivered.
//
// URL format: GET /api/events/{topic}
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	topic := interfaces.Topic(chi.URLParam(r, "topic"))
	sub, err := h.bus.Subscribe(topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer sub.Close()

	// Streams are long lived; clear the server write deadline before the hijack.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		h.log.Warn("Websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	log := h.log.With("topic", topic)
	log.Debug("Event stream opened")

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			log.Debug("Event stream closed", "dropped", sub.Dropped())
			return
		case event, ok := <-sub.C():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event bus closed")
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Error("Failed to encode event", "err", err)
				continue
			}
			if err := writeFrame(ctx, conn, data); err != nil {
				log.Debug("Event stream write failed", "err", err)
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
