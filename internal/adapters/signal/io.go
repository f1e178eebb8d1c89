package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/voxcord/voxcord/internal/app"
	"github.com/voxcord/voxcord/internal/core"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drives the connection's entire lifetime. When the read loop
// exits, for any reason, the deferred Disconnect synchronously purges all
// state for this connection before the pump goroutine ends.
func (ctl *Controller) readPump(connID core.ConnectionID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump closing")
		ctl.Hub.Disconnect(connID)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	readWait := ctl.Cfg.PingPeriod + writeWait
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("readPump read error")
			}
			return
		}
		ctl.handleFrame(connID, data)
	}
}

// handleFrame dispatches one inbound frame by its type discriminator.
// Malformed or unknown frames are logged and dropped; nothing a client
// sends can surface an error back through this layer.
func (ctl *Controller) handleFrame(connID core.ConnectionID, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json frame")
		return
	}

	switch env.Type {
	case "channel:join":
		ctl.handleChannelJoin(connID, data)
	case "channel:leave":
		ctl.handleChannelLeave(connID, data)
	case "message:send":
		ctl.handleMessageSend(context.Background(), connID, data)
	case "typing:start":
		ctl.handleTyping(connID, data, true)
	case "typing:stop":
		ctl.handleTyping(connID, data, false)
	case "voice:join":
		ctl.handleVoiceJoin(connID, data)
	case "voice:leave":
		ctl.Hub.LeaveVoice(connID)
	case "voice:mute":
		ctl.handleVoiceMute(connID, data)
	case "voice:deafen":
		ctl.handleVoiceDeafen(connID, data)
	case "screen:start":
		ctl.handleScreen(connID, data, true)
	case "screen:stop":
		ctl.handleScreen(connID, data, false)
	case app.EvWebRTCOffer, app.EvWebRTCAnswer, app.EvWebRTCICE:
		ctl.handleWebRTC(connID, env.Type, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown frame type")
	}
}
