// Package signal is the websocket adapter: it upgrades authenticated
// requests, owns the per-connection transport, and translates wire frames
// into Hub operations. All realtime state lives behind the Hub; this
// package holds none of it.
package signal

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/voxcord/voxcord/internal/app"
	"github.com/voxcord/voxcord/internal/config"
	"github.com/voxcord/voxcord/internal/core"
	"github.com/voxcord/voxcord/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Controller struct {
	Hub *app.Hub
	Cfg *config.Config
}

func NewController(hub *app.Hub, cfg *config.Config) *Controller {
	return &Controller{Hub: hub, Cfg: cfg}
}

// wsConn pairs a gorilla socket with a buffered outbound queue. TrySend
// never blocks: a full queue means the peer is too slow and the frame is
// dropped with an error the Hub treats as a skip.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and brings the connection online. Identity
// was established by the auth middleware; a fresh connection id is minted
// here and dies with the socket.
func (ctl *Controller) HandleWS(c *gin.Context) {
	v, ok := c.Get("user")
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	user := v.(domain.User)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	connID := core.ConnectionID(uuid.NewString())
	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}

	log.Info().Str("module", "signal").Str("conn", string(connID)).Str("user", string(user.ID)).Msg("new WS connection")
	ctl.Hub.Connect(connID, user, conn)

	go ctl.writePump(conn)
	go ctl.readPump(connID, conn)
}
