package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mrcode/loopchart/internal/chart"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebsocketHandler sends the current view and then every newly published
// geometry zoomed to ?screenHours=N. Slow clients skip to the latest.
func (s *Server) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	hours, err := s.screenHours(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates, cancel := s.engine.Subscribe()
	defer cancel()

	// Reading is required to see close frames
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(g *chart.Geometry) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(s.view(g, hours)); err != nil {
			s.log.Debug("Websocket client gone", slog.Any("error", err))
			return false
		}
		return true
	}

	if g := s.engine.Snapshot(); g != nil && !send(g) {
		return
	}
	for {
		select {
		case g, ok := <-updates:
			if !ok || !send(g) {
				return
			}
		case <-closed:
			return
		}
	}
}
