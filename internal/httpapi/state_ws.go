package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jsvoboda/voicebox/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleStateWS streams session events (state transitions, appended
// messages, banner changes) to a UI client. The first frame is a snapshot
// so a freshly connected UI renders without a separate fetch.
func (rt *Router) handleStateWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		rt.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := rt.orch.Subscribe()
	defer cancel()

	snapshot := struct {
		Type     string            `json:"type"`
		State    stateResponse     `json:"state"`
		Messages []session.Message `json:"messages"`
	}{
		Type:     "snapshot",
		State:    rt.currentState(),
		Messages: rt.orch.Messages(),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	// Reader goroutine just detects the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-req.Context().Done():
			return
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
