// Package progress streams run progress to websocket subscribers of the
// status server. A nil *Hub is a disabled hub; every method no-ops.
package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"interview-insights-go/internal/logger"
)

const (
	UpdateInterviewStarted   = "interview.started"
	UpdateInterviewCompleted = "interview.completed"
	UpdateRunCompleted       = "run.completed"

	writeWait  = 10 * time.Second
	pingPeriod = 60 * time.Second
)

// Update is one progress message pushed to subscribers.
type Update struct {
	Type               string    `json:"type"`
	RunID              string    `json:"run_id"`
	InterviewID        string    `json:"interview_id,omitempty"`
	Status             string    `json:"status,omitempty"`
	CoveragePercentage float64   `json:"coverage_percentage,omitempty"`
	Completed          int       `json:"completed"`
	Total              int       `json:"total"`
	CostUSD            float64   `json:"cost_usd"`
	Timestamp          time.Time `json:"timestamp"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans progress updates out to connected websocket clients.
type Hub struct {
	log        *logger.Logger
	clients    map[*client]bool
	broadcast  chan Update
	register   chan *client
	unregister chan *client
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*client]bool),
		broadcast:  make(chan Update, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run owns the client set until the context ends.
func (h *Hub) Run(ctx context.Context) {
	if h == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.log.WithField("clients", len(h.clients)).Debug("Progress subscriber connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.WithField("clients", len(h.clients)).Debug("Progress subscriber disconnected")
			}

		case update := <-h.broadcast:
			data, err := json.Marshal(update)
			if err != nil {
				h.log.WithError(err).Error("Cannot marshal progress update")
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow subscriber; drop it rather than stall the run.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Broadcast queues an update for all subscribers. Updates are dropped
// when the hub is disabled or saturated.
func (h *Hub) Broadcast(update Update) {
	if h == nil {
		return
	}
	update.Timestamp = time.Now().UTC()
	select {
	case h.broadcast <- update:
	default:
	}
}

// ServeWs upgrades an HTTP request to a progress subscription.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.Error(w, "progress hub disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Error("Cannot upgrade progress connection")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages; its job is to notice the peer
// going away and unregister.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
