package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"salonbot/internal/eventbus"
	logx "salonbot/pkg/logx"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// wsEvent is the wire form of a bus event pushed to UI clients.
type wsEvent struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The frontend is served from a different origin in development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// hub fans bus events out to every connected websocket client. Slow
// clients drop events rather than stall the bus.
type hub struct {
	log logx.Logger
	bus eventbus.Bus

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsEvent
}

func newHub(bus eventbus.Bus, log logx.Logger) *hub {
	return &hub{
		log:     log,
		bus:     bus,
		clients: map[*wsClient]struct{}{},
		done:    make(chan struct{}),
	}
}

func (h *hub) start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	events, unsub := h.bus.Subscribe(64)
	go func() {
		defer close(h.done)
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				h.broadcast(wsEvent{Type: e.Type, Time: e.Time, Data: e.Data})
			}
		}
	}()
}

func (h *hub) stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done

	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(e wsEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			// Client cannot keep up; it still gets later events.
		}
	}
}

func (h *hub) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logx.Err(err))
		return
	}
	c := &wsClient{conn: conn, send: make(chan wsEvent, 16)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("websocket client connected", logx.Int("clients", n))

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards inbound frames; the stream is one-way. It exists to
// process control frames and to notice the peer going away.
func (h *hub) readPump(c *wsClient) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *hub) drop(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}
