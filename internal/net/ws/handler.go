// Package ws is the websocket edge of the server: it upgrades joined
// connections, hands the socket to the hub, and runs the read loop that
// feeds client messages in. Replies and broadcasts travel the session's
// outbound queue, never this goroutine.
package ws

import (
	"errors"
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"github.com/Jamesmykil253/MoBa-sub001/internal/hub"
	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
)

// HandlerConfig carries optional collaborators for the websocket handler.
type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades HTTP requests into websocket sessions bound to the hub.
type Handler struct {
	hub      *hub.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs a websocket handler for the given hub.
func NewHandler(h *hub.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      h,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and binds the socket to the connection named
// by the id query parameter. The connection must have joined over HTTP
// first; dialing again replaces any previous socket for the same id.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	connID := r.URL.Query().Get("id")
	if connID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", connID, err)
		return
	}

	sess, keyframe, err := h.hub.Attach(connID, conn)
	if err != nil {
		if errors.Is(err, hub.ErrUnknownConn) {
			message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown connection")
			conn.WriteMessage(websocket.CloseMessage, message)
			conn.Close()
			return
		}
		h.logger.Printf("failed to attach %s: %v", connID, err)
		h.hub.Disconnect(connID, "attach_failure")
		return
	}

	if !sess.Send(keyframe) {
		h.hub.Disconnect(connID, "write_failure")
		return
	}

	h.readLoop(connID, sess, conn)
}
