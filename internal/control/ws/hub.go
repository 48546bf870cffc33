// Package ws implements the Control Surface's /ws endpoint (SPEC_FULL
// §6.1): on connection a client is subscribed to every Event Bus topic and
// receives `{event, data}` JSON frames for as long as the connection stays
// open. Grounded on the teacher's websocket.Server client-registry pattern
// (internal/websocket/server.go), narrowed from a JSON-RPC request/response
// protocol to a pure server-push fan-out — there is no client-to-server
// method dispatch in this surface, so the registry only tracks enough per
// connection to unsubscribe and close it on shutdown.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cortexvms/vms-core/internal/eventbus"
	"github.com/cortexvms/vms-core/internal/logging"
)

const writeWait = 10 * time.Second

var allTopics = []eventbus.Topic{
	eventbus.TopicCameraAdded,
	eventbus.TopicCameraUpdated,
	eventbus.TopicCameraDeleted,
	eventbus.TopicCameraStatus,
	eventbus.TopicRecordingStarted,
	eventbus.TopicRecordingStopped,
	eventbus.TopicANPREvent,
}

// frame is the wire shape of every message pushed to a connected client.
type frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub upgrades incoming requests to WebSocket connections and fans out
// every Event Bus message to each connected client.
type Hub struct {
	bus      *eventbus.Bus
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]context.CancelFunc
}

// NewHub constructs a Hub reading from bus.
func NewHub(bus *eventbus.Bus, logger *logging.Logger) *Hub {
	return &Hub{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			// The control surface sits behind whatever reverse proxy or
			// CORS policy the deployment configures; origin checking
			// beyond that is out of scope for the core.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]context.CancelFunc),
	}
}

// ServeHTTP upgrades the request and starts fanning out Event Bus messages
// to it until the client disconnects or the server shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())

	h.mu.Lock()
	h.conns[conn] = cancel
	h.mu.Unlock()

	go h.readUntilClosed(conn, cancel)
	go h.pump(ctx, conn)
}

// readUntilClosed drains (and discards) client frames purely to detect
// disconnect; this endpoint never accepts client-initiated commands.
func (h *Hub) readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pump subscribes to every topic and forwards events to conn until ctx is
// cancelled, then unsubscribes and closes the connection.
func (h *Hub) pump(ctx context.Context, conn *websocket.Conn) {
	sub := h.bus.Subscribe(allTopics...)
	defer func() {
		h.bus.Unsubscribe(sub)
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame{Event: string(evt.Topic), Data: evt.Payload}); err != nil {
				return
			}
		}
	}
}

// Run blocks until ctx is cancelled, then closes every currently connected
// client so Server.Run's shutdown path doesn't leak goroutines.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, cancel := range h.conns {
		cancel()
		_ = conn.Close()
	}
}
