package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iqtlabs/gamutrf/internal/recorder"
)

const (
	writeWait        = 10 * time.Second
	subscriberBuffer = 64
)

type eventClient struct {
	conn   *websocket.Conn
	events <-chan recorder.Event
}

// writePump sends the replayed backlog, then live events, until the
// subscription is cancelled or a write fails.
func (c *eventClient) writePump(backlog []recorder.Event) {
	defer c.conn.Close()

	var lastSeq int64
	send := func(e recorder.Event) bool {
		if e.Seq <= lastSeq {
			return true
		}
		lastSeq = e.Seq
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(e); err != nil {
			slog.Debug("Event stream write failed", "error", err)
			return false
		}
		return true
	}

	for _, e := range backlog {
		if !send(e) {
			return
		}
	}
	for e := range c.events {
		if !send(e) {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// handleEvents streams job events over a websocket. ?since=N first replays
// buffered events with a sequence above N.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}

	since := int64(-1)
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			s.sendErrorResponse(w, http.StatusBadRequest, "since must be a non-negative integer",
				"operation", "events", "since", raw)
			return
		}
		since = n
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	bus := s.service.Events()
	events, cancel := bus.Subscribe(subscriberBuffer)
	defer cancel()

	var backlog []recorder.Event
	if since >= 0 {
		backlog = bus.Since(since)
	}

	slog.Debug("Event stream client connected", "remote", r.RemoteAddr, "since", since)
	go (&eventClient{conn: conn, events: events}).writePump(backlog)

	// Clients never send anything; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			slog.Debug("Event stream client disconnected", "remote", r.RemoteAddr)
			return
		}
	}
}
