package stubtable

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

var errHubClosed = errors.New("server is shutting down")

// hub fans session snapshots out to the pages watching that session.
type hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[string]map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan Session
}

func newHub(log *slog.Logger) *hub {
	return &hub{log: log, clients: make(map[string]map[*client]struct{})}
}

// attach registers conn for sessionID and pumps updates until the connection
// drops. The first message is the snapshot; taking it under the hub lock
// means no broadcast can slip in between.
func (h *hub) attach(sessionID string, conn *websocket.Conn, snapshot func() (Session, error)) error {
	c := &client{conn: conn, send: make(chan Session, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errHubClosed
	}
	initial, err := snapshot()
	if err != nil {
		h.mu.Unlock()
		return err
	}
	c.send <- initial
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*client]struct{})
	}
	h.clients[sessionID][c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("page attached", "session", sessionID, "remote", conn.RemoteAddr().String())

	go c.writePump(h.log)
	go h.readPump(sessionID, c)
	return nil
}

// broadcast queues s for every page of its session. A page that cannot keep
// up is dropped.
func (h *hub) broadcast(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[s.ID] {
		select {
		case c.send <- s:
		default:
			h.log.Warn("dropping slow page", "session", s.ID)
			h.detachLocked(s.ID, c)
		}
	}
}

func (h *hub) detach(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(sessionID, c)
}

func (h *hub) detachLocked(sessionID string, c *client) {
	set := h.clients[sessionID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, sessionID)
	}
	close(c.send)
}

// count returns how many pages watch sessionID.
func (h *hub) count(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[sessionID])
}

// close detaches every page.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, set := range h.clients {
		for c := range set {
			h.detachLocked(id, c)
		}
	}
}

// readPump only watches for the page going away; pages never send.
func (h *hub) readPump(sessionID string, c *client) {
	defer h.detach(sessionID, c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("page read error", "session", sessionID, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case s, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(s); err != nil {
				log.Debug("page write error", "session", s.ID, "error", err)
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
