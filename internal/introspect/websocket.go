package introspect

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
)

// localUpgrader allows any origin: the sidecar is only ever reachable from
// localhost, so there is no cross-site WebSocket hijacking surface to guard
// against (unlike the teacher's SaaS-mode origin check, which has no
// counterpart here).
var localUpgrader = websocket.Upgrader{
	CheckOrigin:       func(_ *http.Request) bool { return true },
	EnableCompression: true,
}

// wsClient is one connected tailing client.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := localUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "err", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error("failed to set read deadline", "err", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	client := &wsClient{conn: conn}
	s.registerClient(client)

	stats, err := s.currentStats()
	if err == nil {
		s.writeToClient(client, Message{Type: "stats", Stats: &stats})
	}

	done := make(chan struct{})
	go s.clientReadPump(client, done)
	go s.clientWritePump(client, done)
}

func (s *Server) registerClient(c *wsClient) {
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
	s.logger.Info("client connected", "addr", c.conn.RemoteAddr())
}

func (s *Server) removeClient(c *wsClient) {
	s.clientsMu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.clientsMu.Unlock()
	if ok {
		_ = c.conn.Close()
		s.logger.Info("client disconnected", "addr", c.conn.RemoteAddr())
	}
}

func (s *Server) closeAllClients() {
	s.clientsMu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*wsClient]struct{})
	s.clientsMu.Unlock()

	closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range clients {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, deadline)
		_ = c.conn.Close()
	}
}

func (s *Server) sendToAllClients(msg Message) {
	s.clientsMu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		if err := s.writeToClient(c, msg); err != nil {
			s.logger.Error("broadcast failed", "addr", c.conn.RemoteAddr(), "err", err)
			s.removeClient(c)
		}
	}
}

func (s *Server) writeToClient(c *wsClient, msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (s *Server) clientReadPump(c *wsClient, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket read error", "addr", c.conn.RemoteAddr(), "err", err)
			}
			return
		}
	}
}

func (s *Server) clientWritePump(c *wsClient, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.removeClient(c)

	for {
		select {
		case <-done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err1 := c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			var err2 error
			if err1 == nil {
				err2 = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.writeMu.Unlock()
			if err1 != nil || err2 != nil {
				return
			}
		}
	}
}
