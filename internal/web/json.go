package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/vent-controller/internal/eventlog"
	"github.com/sweeney/vent-controller/internal/status"
)

// DefaultLiveInterval is how often /ws pushes the status.
const DefaultLiveInterval = 2 * time.Second

// MaxEventLimit caps the ?limit parameter of /events.
const MaxEventLimit = 1000

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 10
)

// EventsJSON is the /events response.
type EventsJSON struct {
	Events []eventlog.Event `json:"events"`
}

var upgrader = websocket.Upgrader{
	// read-only feed
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := eventlog.DefaultListLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > MaxEventLimit {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := s.opts.Events.List(r.Context(), limit)
	if err != nil {
		s.log.Warnw("list events failed", "error", err)
		http.Error(w, "event log unavailable", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []eventlog.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(EventsJSON{Events: events})
}

// handleLive streams the compact status JSON over a websocket, once on
// connect and then every LiveInterval.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugw("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.LiveInterval)
	ping := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer ping.Stop()

	if err := s.sendStatus(conn); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.sendStatus(conn); err != nil {
				s.log.Debugw("ws write failed", "error", err)
				return
			}
		}
	}
}

func (s *Server) sendStatus(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, status.FormatCompact(s.tracker.Snapshot()))
}
