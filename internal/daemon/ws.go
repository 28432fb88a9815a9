package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"docket/internal/logging"
)

// wsWriteWait bounds each statistics write; a client that cannot drain a
// frame within it is dropped.
const wsWriteWait = 5 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The default bind is loopback-only; origin policy is left to the
	// deployment when the bind is widened.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS streams statistics snapshots: one immediately on connect, then
// one per push interval until the client disconnects or the daemon stops.
func (m *monitorServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		m.log().Debug("websocket upgrade rejected", logging.Error(err))
		return
	}
	defer conn.Close()

	// Drain client frames so pings are answered and peer closes are seen.
	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := m.pushStats(conn); err != nil {
		m.log().Debug("websocket push failed", logging.Error(err))
		return
	}

	ticker := time.NewTicker(m.push)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			deadline := time.Now().Add(wsWriteWait)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon stopping"), deadline)
			return
		case <-peerGone:
			return
		case <-ticker.C:
			if err := m.pushStats(conn); err != nil {
				m.log().Debug("websocket push failed", logging.Error(err))
				return
			}
		}
	}
}

func (m *monitorServer) pushStats(conn *websocket.Conn) error {
	stats, err := m.queueSvc.Stats(m.ctx)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(stats)
}
