package relay

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func (c *client) send(msgs ...Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, msg := range msgs {
		if err := c.conn.WriteJSON(msg); err != nil {
			return err
		}
	}
	return nil
}

// Hub relays collection changes between WebSocket clients. It holds no
// collection state of its own; every message is handed to its Endpoint.
type Hub struct {
	endpoints map[string]Endpoint
	upgrader  websocket.Upgrader
	log       *slog.Logger
	metrics   *Metrics

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(logger *slog.Logger, metrics *Metrics, endpoints ...Endpoint) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		endpoints: make(map[string]Endpoint, len(endpoints)),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     logger,
		metrics: metrics,
		clients: make(map[string]*client),
	}
	for _, e := range endpoints {
		h.endpoints[e.Name()] = e
	}
	return h
}

// Router serves the WebSocket endpoint at /ws and, when gatherer is set,
// Prometheus metrics at metricsPath.
func (h *Hub) Router(metricsPath string, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.ServeWS)
	if gatherer != nil && metricsPath != "" {
		r.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	c := &client{id: uuid.NewString(), conn: conn}
	h.register(c)
	defer h.unregister(c)

	for _, e := range h.endpoints {
		msg, err := e.SnapshotMessage()
		if err != nil {
			h.log.Error("snapshot failed", "collection", e.Name(), "err", err)
			return
		}
		if err := c.send(msg); err != nil {
			return
		}
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("read failed", "client", c.id, "err", err)
			}
			return
		}
		h.log.Debug("message", "client", c.id, "type", msg.Type, "collection", msg.Collection, "id", msg.ID)

		if err := h.dispatch(c, msg); err != nil {
			return
		}
	}
}

// dispatch handles one message; only a failed write to c is returned.
func (h *Hub) dispatch(c *client, msg Message) error {
	e, ok := h.endpoints[msg.Collection]
	if !ok {
		return c.send(Message{Type: KindError, Collection: msg.Collection, ID: msg.ID, Error: fmt.Sprintf("unknown collection %q", msg.Collection)})
	}

	reply, broadcast, err := e.Handle(msg)
	if err != nil {
		if h.metrics != nil {
			h.metrics.Rejected.WithLabelValues(msg.Collection).Inc()
		}
		h.log.Warn("message rejected", "client", c.id, "collection", msg.Collection, "type", msg.Type, "err", err)
		return c.send(Message{Type: KindError, Collection: msg.Collection, ID: msg.ID, Error: err.Error()})
	}
	// only kinds Handle accepted become label values
	if h.metrics != nil {
		h.metrics.Messages.WithLabelValues(msg.Collection, string(msg.Type)).Inc()
	}

	if len(broadcast) > 0 {
		h.broadcast(c, broadcast)
	}
	return c.send(reply...)
}

func (h *Hub) broadcast(from *client, msgs []Message) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		if id != from.id {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	h.log.Debug("broadcast", "messages", len(msgs), "clients", len(targets))
	for _, c := range targets {
		if err := c.send(msgs...); err != nil {
			h.log.Warn("broadcast failed", "client", c.id, "err", err)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.Clients.Inc()
	}
	h.log.Info("client connected", "client", c.id, "total", total)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	remaining := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.Clients.Dec()
	}
	h.log.Info("client disconnected", "client", c.id, "remaining", remaining)
}
