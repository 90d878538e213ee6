package adminapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/wafleet/internal/webserver"
	"go.uber.org/zap"
)

const streamWriteWait = 10 * time.Second

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The admin console is served from arbitrary origins in self-hosted
	// deployments.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// registerStreamRoutes registers the live event stream endpoint. Browsers
// dial it directly, so it lives outside the /api/v1 prefix.
func registerStreamRoutes() {
	webserver.RootGET("/ws/stream", streamEvents)
}

// streamEvents upgrades to a websocket and relays the owner's hub frames
// until the client goes away. Slow clients miss frames rather than block
// other subscribers.
func streamEvents(c echo.Context) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_OWNER", "Invalid or missing ownerId", nil)
	}

	conn, err := streamUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h := GetAppContext(c).Hub()
	sub := h.Subscribe(ownerID)
	defer h.Unsubscribe(sub)
	defer conn.Close()

	// Reader drains control frames and unblocks the writer when the peer
	// closes the socket.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame, okc := <-sub.Frames():
			if !okc {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				zap.L().Debug("stream write failed",
					zap.Int64("owner_id", ownerID), zap.Error(err))
				return nil
			}
		case <-done:
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}
