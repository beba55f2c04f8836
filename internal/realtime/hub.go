package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nighttangerine-pos/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Snapshotter provides the current realtime view of orders. Implemented by
// the order service.
type Snapshotter interface {
	Snapshot(ctx context.Context) (preparing, finished []*domain.Order, err error)
}

// OrderSummary is the reduced projection pushed to display clients. Item
// detail is deliberately omitted; clients that need it query the REST API.
type OrderSummary struct {
	ID        uuid.UUID          `json:"id"`
	Number    int                `json:"number"`
	Status    domain.OrderStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
}

// SnapshotData is the payload of an orders:update message.
type SnapshotData struct {
	Preparing []OrderSummary `json:"preparing"`
	Finished  []OrderSummary `json:"finished"`
}

// Message is the envelope for every server-to-client push.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes to the connection
}

func (c *client) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks connected display clients and fans snapshots out to them.
// Delivery is best-effort: a failed send drops that one client and never
// propagates back to the mutation that triggered the broadcast.
type Hub struct {
	snapshots Snapshotter
	logger    *zap.Logger
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub. The snapshot source is attached afterwards with
// SetSnapshotter; the order service both feeds the hub and notifies it, so
// neither can be constructed strictly before the other.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Displays connect from arbitrary origins; auth is handled
			// upstream of this service.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*client]struct{}{},
	}
}

// SetSnapshotter attaches the snapshot source. Must be called before the hub
// accepts connections.
func (h *Hub) SetSnapshotter(snapshots Snapshotter) {
	h.snapshots = snapshots
}

// ServeHTTP upgrades the connection, greets the client with hello plus a full
// snapshot, then keeps reading (and discarding) inbound frames until the
// connection drops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Display client connected", zap.Int("clients", count))

	if err := h.greet(r.Context(), c); err != nil {
		h.logger.Debug("Failed to greet client", zap.Error(err))
		h.drop(c)
		return
	}

	go h.readLoop(c)
}

// OrdersChanged implements service.OrderNotifier. The snapshot is recomputed
// and pushed on a separate goroutine so the originating request never waits
// on slow clients.
func (h *Hub) OrdersChanged() {
	go h.Broadcast(context.Background())
}

// Broadcast recomputes the snapshot and pushes it to every connected client.
func (h *Hub) Broadcast(ctx context.Context) {
	payload, err := h.snapshotMessage(ctx)
	if err != nil {
		h.logger.Error("Failed to build realtime snapshot", zap.Error(err))
		return
	}

	for _, c := range h.clientList() {
		if err := c.send(payload); err != nil {
			h.logger.Debug("Dropping display client after send failure", zap.Error(err))
			h.drop(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	for _, c := range h.clientList() {
		h.drop(c)
	}
}

func (h *Hub) greet(ctx context.Context, c *client) error {
	hello, err := json.Marshal(Message{Type: "hello", Data: map[string]string{"version": "1"}})
	if err != nil {
		return err
	}
	if err := c.send(hello); err != nil {
		return err
	}

	snapshot, err := h.snapshotMessage(ctx)
	if err != nil {
		return err
	}
	return c.send(snapshot)
}

func (h *Hub) snapshotMessage(ctx context.Context) ([]byte, error) {
	preparing, finished, err := h.snapshots.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	data := SnapshotData{
		Preparing: summarize(preparing),
		Finished:  summarize(finished),
	}
	return json.Marshal(Message{Type: "orders:update", Data: data})
}

func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		// Inbound messages carry no meaning; the channel is push-only.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if present {
		c.conn.Close()
	}
}

func (h *Hub) clientList() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		list = append(list, c)
	}
	return list
}

func summarize(orders []*domain.Order) []OrderSummary {
	summaries := make([]OrderSummary, 0, len(orders))
	for _, order := range orders {
		summaries = append(summaries, OrderSummary{
			ID:        order.ID,
			Number:    order.Number,
			Status:    order.Status,
			CreatedAt: order.CreatedAt,
		})
	}
	return summaries
}
