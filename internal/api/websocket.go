package api

import (
	"NetSentinel/internal/model"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Event is the envelope of every message pushed over /ws.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	dropped atomic.Uint64
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
}

// wsHandler streams a metrics snapshot every push interval and every accepted
// alert as it happens.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, s.cfg.ClientBuffer)}
	s.clients.Store(client, struct{}{})

	// The store calls this synchronously, so hand off without blocking.
	id := s.deps.Alerts.AddListener(func(a model.Alert) {
		data, err := json.Marshal(Event{Event: "alert", Data: a})
		if err != nil {
			return
		}
		select {
		case client.send <- data:
		default:
			client.dropped.Add(1)
		}
	})

	s.logger.Debug("WebSocket client connected", zap.String("remote", r.RemoteAddr))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		readDone := make(chan struct{})
		go s.readPump(client, readDone)
		s.writePump(client, readDone)

		s.deps.Alerts.RemoveListener(id)
		s.clients.Delete(client)
		conn.Close()
		<-readDone
		s.logger.Debug("WebSocket client disconnected",
			zap.String("remote", r.RemoteAddr), zap.Uint64("dropped_alerts", client.dropped.Load()))
	}()
}

// readPump discards inbound messages and watches for the peer going away.
func (s *Server) readPump(client *wsClient, done chan struct{}) {
	defer close(done)

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func (s *Server) writePump(client *wsClient, readDone <-chan struct{}) {
	push := time.NewTicker(s.cfg.PushInterval)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if !s.pushMetrics(client) {
		return
	}
	for {
		select {
		case data := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-push.C:
			if !s.pushMetrics(client) {
				return
			}
		case <-ping.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-s.ctx.Done():
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			client.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

func (s *Server) pushMetrics(client *wsClient) bool {
	data, err := json.Marshal(Event{Event: "metrics", Data: s.deps.Metrics.Snapshot()})
	if err != nil {
		s.logger.Error("Failed to encode metrics event", zap.Error(err))
		return true
	}
	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return client.conn.WriteMessage(websocket.TextMessage, data) == nil
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	n := 0
	s.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
