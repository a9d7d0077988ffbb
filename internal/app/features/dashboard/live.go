package dashboard

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/livestats"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Frame types sent on the live stream.
const (
	FrameHello    = "hello"
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// Frame is one websocket message.
type Frame struct {
	Type         string              `json:"type"`
	ConnectionID string              `json:"connection_id,omitempty"`
	Snapshot     *livestats.Snapshot `json:"snapshot,omitempty"`
	Error        string              `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

// ServeLive handles GET /dashboard/live. It upgrades to a websocket and
// pushes every snapshot the viewer's live session publishes. Viewers with
// the same scope share one session.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return
	}

	sess, release, err := h.Stats.Acquire(r.Context(), actor)
	if err != nil {
		h.Log.Error("dashboard live: start session", zap.Error(err), zap.String("user_id", actor.ID.Hex()))
		uierrors.JSON(w, http.StatusServiceUnavailable, uierrors.CodeUnavailable, "Live statistics are unavailable.")
		return
	}
	defer release()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.Log.Warn("dashboard live: upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := h.Log.With(zap.String("conn_id", connID), zap.String("user_id", actor.ID.Hex()))
	log.Info("live dashboard connected", zap.String("scope", livestats.ScopeKey(actor)))
	defer log.Info("live dashboard disconnected")

	// Latest-wins mailbox: a slow client skips intermediate frames.
	updates := make(chan Frame, 1)
	push := func(f Frame) {
		select {
		case updates <- f:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- f:
			default:
			}
		}
	}
	cancelSnap := sess.OnSnapshotChanged(func(s livestats.Snapshot) {
		push(Frame{Type: FrameSnapshot, Snapshot: &s})
	})
	defer cancelSnap()
	cancelErr := sess.OnError(func(err error) {
		log.Warn("live dashboard recompute failed", zap.Error(err))
		push(errorFrame())
	})
	defer cancelErr()

	done := make(chan struct{})
	go readPump(conn, done)

	if err := write(conn, Frame{Type: FrameHello, ConnectionID: connID}); err != nil {
		return
	}
	if snap, loaded := sess.Current(); loaded {
		if err := write(conn, Frame{Type: FrameSnapshot, Snapshot: &snap}); err != nil {
			return
		}
	}
	if err := sess.Err(); err != nil {
		if werr := write(conn, errorFrame()); werr != nil {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-sess.Done():
			// Server shutdown; tell the client instead of idling on pings.
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case f := <-updates:
			if err := write(conn, f); err != nil {
				log.Debug("live dashboard write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed, and
// closes done when the client goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func errorFrame() Frame {
	return Frame{Type: FrameError, Error: "Statistics are temporarily unavailable."}
}

func write(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}
