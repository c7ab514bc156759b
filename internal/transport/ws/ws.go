// Package ws connects websocket clients to the broadcast router. Each client
// subscribes to exactly one topic: its table, or its staff role.
package ws

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xenking/tableflow/internal/broadcast"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer bounds the per-client outbox. A client that falls this far
	// behind is dropped rather than allowed to stall publishes.
	sendBuffer = 32
)

var errBufferFull = errors.New("send buffer full")

// client adapts one websocket connection to broadcast.Conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

var _ broadcast.Conn = (*client)(nil)

// Send queues a frame without blocking. It fails when the client's outbox is
// full or the connection is closing.
func (c *client) Send(frame []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errBufferFull
	}
}

// Close stops the write pump, which closes the underlying connection.
func (c *client) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return nil
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// readPump consumes inbound frames to keep the connection's read side alive.
// Clients do not talk back over the socket; mutations go through the HTTP API.
func (c *client) readPump(onClose func()) {
	defer onClose()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Handler upgrades HTTP requests to websocket subscriptions.
type Handler struct {
	router   *broadcast.Router
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket Handler attached to the given router.
func NewHandler(router *broadcast.Router) *Handler {
	return &Handler{
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks happen in the CORS middleware layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeTable subscribes a guest device to its table topic.
// Route: GET /ws/table/{id}.
func (h *Handler) ServeTable(w http.ResponseWriter, r *http.Request) {
	tableID := r.PathValue("id")
	if tableID == "" {
		http.Error(w, "table id required", http.StatusBadRequest)
		return
	}
	h.serve(w, r, broadcast.TableTopic(tableID))
}

// ServeRole subscribes a staff display to its role topic.
// Route: GET /ws/role/{role}.
func (h *Handler) ServeRole(w http.ResponseWriter, r *http.Request) {
	role := r.PathValue("role")
	if !broadcast.ValidRole(role) {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	h.serve(w, r, broadcast.RoleTopic(role))
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, topic broadcast.Topic) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zctx.From(ctx).Warn("Websocket upgrade failed",
			zap.String("topic", string(topic)),
			zap.Error(err),
		)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.router.Subscribe(ctx, c, topic)

	go c.writePump()
	go c.readPump(func() {
		// Detach from every topic before tearing the connection down; the
		// router must never hold a connection that stopped reading.
		h.router.DropConn(ctx, c)
		_ = c.Close()
	})
}
