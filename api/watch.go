package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zainbaq/medical-ml/registry"
)

const (
	watchWriteWait  = 10 * time.Second
	watchPongWait   = 60 * time.Second
	watchPingPeriod = watchPongWait * 9 / 10
	watchBuffer     = 64
)

// handleWatch streams store events as JSON text frames. An optional
// ?service_id= restricts the stream to one service. Events a slow client
// cannot keep up with are dropped.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("service_id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written an error response
		s.requestLogger(r).Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.broadcaster.Subscribe(watchBuffer)
	defer sub.Close()

	logger := s.requestLogger(r).With("remote", r.RemoteAddr)
	logger.Debug("Watch stream opened", "service_id", filter)

	// Reader: handles pongs and notices client close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(watchPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(watchPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			logger.Debug("Watch stream closed by client", "dropped", sub.Dropped())
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(watchWriteWait))
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if filter != "" && ev.ServiceID != filter {
				continue
			}
			if err := writeEvent(conn, ev); err != nil {
				logger.Debug("Watch stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev registry.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
