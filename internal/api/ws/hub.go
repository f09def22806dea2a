package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
)

// Message types sent to clients
const (
	TypeSystem = "system"
	TypeEvent  = "event"
	TypePong   = "pong"
	TypeError  = "error"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope written to clients
type Message struct {
	Type      string       `json:"type"`
	Event     *types.Event `json:"event,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// inbound is what clients may send
type inbound struct {
	Type string `json:"type"`
}

type client struct {
	conn      *websocket.Conn
	send      chan Message
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub streams session events to websocket clients. Publish is meant to be
// subscribed to the session's dispatcher, so clients see events in the
// order the dispatcher delivers them. A client that falls too far behind
// is disconnected rather than allowed to stall delivery.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{} // Protected by mu

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHub creates a hub with no clients
func NewHub(logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger.Named("ws"),
		metrics: metrics,
	}
}

// Publish queues e for every connected client
func (h *Hub) Publish(e types.Event) {
	msg := Message{Type: TypeEvent, Event: &e, Timestamp: e.Time.Unix()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Dropping slow websocket client", zap.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// HandleConnection upgrades the request and streams events until the
// client disconnects
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan Message, sendBuffer)}
	h.add(cl)
	defer h.remove(cl)

	h.enqueue(cl, Message{Type: TypeSystem, Message: "connected to session stream", Timestamp: time.Now().Unix()})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(cl)
	}()

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			break
		}

		reply := Message{Type: TypePong, Timestamp: time.Now().Unix()}
		if msg.Type != "ping" {
			reply = Message{Type: TypeError, Message: "unknown message type", Timestamp: time.Now().Unix()}
		}
		if !h.enqueue(cl, reply) {
			break
		}
	}

	h.remove(cl)
	<-writerDone
}

// writeLoop is the only goroutine writing to the connection
func (h *Hub) writeLoop(cl *client) {
	defer cl.conn.Close()
	for msg := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(msg); err != nil {
			h.logger.Debug("WebSocket write failed", zap.Error(err))
			h.remove(cl)
			for range cl.send {
			}
			return
		}
	}
	cl.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (h *Hub) enqueue(cl *client, msg Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; !ok {
		return false
	}
	select {
	case cl.send <- msg:
		return true
	default:
		h.removeLocked(cl)
		return false
	}
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.metrics.WSConnected(1)
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(cl)
}

// removeLocked unregisters and closes cl once (must hold mu)
func (h *Hub) removeLocked(cl *client) {
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	cl.close()
	h.metrics.WSConnected(-1)
}
