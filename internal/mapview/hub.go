package mapview

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"firstview-tracker/internal/geo"
	"firstview-tracker/internal/viewport"
)

const (
	TypeRegion           = "region"
	TypeAnimateToRegion  = "animate_to_region"
	TypeFitToCoordinates = "fit_to_coordinates"
	TypeSnapshot         = "snapshot"
	TypePong             = "pong"
)

// Message is the JSON envelope sent to map clients.
type Message struct {
	Type       string               `json:"type"`
	Timestamp  string               `json:"timestamp"`
	Region     *geo.Region          `json:"region,omitempty"`
	DurationMs int64                `json:"durationMs,omitempty"`
	Points     []geo.Point          `json:"points,omitempty"`
	Options    *viewport.FitOptions `json:"options,omitempty"`
	Data       any                  `json:"data,omitempty"`
}

type HubMetrics interface {
	MapClientsSet(n int)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans camera commands and snapshots out to every connected map client. It is the
// live MapHandle: it is ready while at least one client is connected.
type Hub struct {
	camera  *viewport.Camera
	metrics HubMetrics

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	snapshot []byte
	closed   bool
}

func NewHub(camera *viewport.Camera, m HubMetrics) *Hub {
	if camera == nil {
		camera = viewport.NewCamera(0, 0)
	}
	return &Hub{camera: camera, metrics: m, clients: make(map[*Client]struct{})}
}

func (h *Hub) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Region is the camera region as last commanded.
func (h *Hub) Region() geo.Region { return h.camera.Region() }

func (h *Hub) AnimateToRegion(region geo.Region, d time.Duration) {
	h.camera.AnimateToRegion(region, d)
	h.broadcast(Message{Type: TypeAnimateToRegion, Region: &region, DurationMs: d.Milliseconds()})
}

func (h *Hub) FitToCoordinates(points []geo.Point, opts viewport.FitOptions) {
	h.camera.FitToCoordinates(points, opts)
	region := h.camera.Region()
	h.broadcast(Message{Type: TypeFitToCoordinates, Region: &region, Points: points, Options: &opts})
}

// BroadcastSnapshot sends data to all clients and keeps it for clients that connect later.
func (h *Hub) BroadcastSnapshot(data any) {
	b, ok := encode(Message{Type: TypeSnapshot, Data: data})
	if !ok {
		return
	}
	h.mu.Lock()
	h.snapshot = b
	h.mu.Unlock()
	h.send(b)
}

// ServeHTTP upgrades the connection and registers a client. The client first receives the
// current region, then the last snapshot if there is one.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	c := newClient(conn, h)
	region := h.camera.Region()
	hello, _ := encode(Message{Type: TypeRegion, Region: &region})

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	c.send <- hello
	if h.snapshot != nil {
		c.send <- h.snapshot
	}
	h.mu.Unlock()
	h.reportClients(n)
	log.Printf("map client connected from %s (%d connected)", r.RemoteAddr, n)

	go c.writePump()
	go c.readPump()
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.reportClients(0)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.reportClients(n)
		log.Printf("map client disconnected (%d connected)", n)
	}
}

func (h *Hub) broadcast(msg Message) {
	if b, ok := encode(msg); ok {
		h.send(b)
	}
}

func (h *Hub) send(b []byte) {
	h.mu.Lock()
	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			delete(h.clients, c)
			close(c.send)
			dropped++
		}
	}
	n := len(h.clients)
	h.mu.Unlock()
	if dropped > 0 {
		log.Printf("dropped %d slow map clients", dropped)
		h.reportClients(n)
	}
}

func (h *Hub) reportClients(n int) {
	if h.metrics != nil {
		h.metrics.MapClientsSet(n)
	}
}

func encode(msg Message) ([]byte, bool) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("map message marshal error: %v", err)
		return nil, false
	}
	return b, true
}
