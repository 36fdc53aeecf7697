package notify

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	// Terminal events are small and rare per record; a short buffer is
	// enough to ride out a slow frontend without blocking the pipeline.
	clientBuffer = 16
)

// Hub serves the /ws/status endpoint. Every connection becomes a bus
// subscriber and receives status-change events as JSON frames until it
// disconnects. Events published while disconnected are simply missed.
type Hub struct {
	bus      *Bus
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(bus *Bus, logger *zap.Logger) *Hub {
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth and origin policy live on the gateway in front of us.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	events, err := h.bus.Subscribe(id, clientBuffer)
	if err != nil {
		h.logger.Warn("subscribe failed", zap.String("subscriber_id", id), zap.Error(err))
		conn.Close()
		return
	}

	log := h.logger.With(zap.String("subscriber_id", id), zap.String("remote", r.RemoteAddr))
	log.Info("observer connected")

	go h.readLoop(conn, id, log)
	go h.writeLoop(conn, events, log)
}

// readLoop discards inbound frames; its job is to notice the disconnect
// and tear down the subscription.
func (h *Hub) readLoop(conn *websocket.Conn, id string, log *zap.Logger) {
	defer func() {
		_ = h.bus.Unsubscribe(id)
		conn.Close()
		log.Info("observer disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, events <-chan entity.StatusChangeEvent, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Error("marshal event", zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Warn("write event", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
