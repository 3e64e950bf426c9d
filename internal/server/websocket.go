package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gatewright/gatewright/internal/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Deliveries carry no browser credentials; the stream is read-only.
		return true
	},
}

// handleEventStream upgrades the connection and forwards run events for one
// repository, or for all repositories when no repo filter is given.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	if repo == "" {
		repo = events.GlobalRepo
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	ch := s.publisher.Subscribe(repo)
	if ch == nil {
		_ = conn.Close()
		return
	}

	s.metrics.eventStreamConns.Inc()
	done := make(chan struct{})

	go s.streamWritePump(conn, ch, done)
	go s.streamReadPump(conn, repo, ch, done)
}

func (s *Server) streamWritePump(conn *websocket.Conn, ch <-chan events.Event, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) streamReadPump(conn *websocket.Conn, repo string, ch <-chan events.Event, done chan struct{}) {
	defer func() {
		close(done)
		s.publisher.Unsubscribe(repo, ch)
		_ = conn.Close()
		s.metrics.eventStreamConns.Dec()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only read; drain until the peer goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
