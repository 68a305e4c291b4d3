package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quickshop/catalog/internal/app/metrics"
	"github.com/quickshop/catalog/pkg/logger"
)

const (
	wsReadLimit  = 1 << 20
	wsReadWait   = 60 * time.Second
	wsWriteWait  = 10 * time.Second
	wsCloseGrace = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var wsLog = logger.NewDefault("ws")

// wsEcho upgrades the connection and echoes every text or binary message
// back to the client until the peer closes or times out.
func (h *handler) wsEcho(w http.ResponseWriter, r *http.Request) {
	log := wsLog.WithContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.WSConnectionOpened()
	defer metrics.WSConnectionClosed()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadWait))
	})

	log.WithField("remote", conn.RemoteAddr().String()).Info("websocket connected")

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("websocket read")
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(msgType, payload); err != nil {
			log.WithError(err).Warn("websocket write")
			break
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(wsCloseGrace))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
