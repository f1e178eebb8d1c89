package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxcord/voxcord/internal/core"
	"github.com/voxcord/voxcord/internal/domain"
)

func (ctl *Controller) handleChannelJoin(connID core.ConnectionID, data []byte) {
	var p struct {
		ChannelID domain.ChannelID `json:"channelId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		log.Warn().Str("module", "signal").Msg("bad channel:join payload")
		return
	}
	ctl.Hub.JoinRoom(connID, p.ChannelID)
}

func (ctl *Controller) handleChannelLeave(connID core.ConnectionID, data []byte) {
	var p struct {
		ChannelID domain.ChannelID `json:"channelId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		log.Warn().Str("module", "signal").Msg("bad channel:leave payload")
		return
	}
	ctl.Hub.LeaveRoom(connID, p.ChannelID)
}

func (ctl *Controller) handleMessageSend(ctx context.Context, connID core.ConnectionID, data []byte) {
	var p struct {
		ChannelID domain.ChannelID `json:"channelId"`
		Content   string           `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		log.Warn().Str("module", "signal").Msg("bad message:send payload")
		return
	}
	ctl.Hub.SendMessage(ctx, connID, p.ChannelID, p.Content)
}

func (ctl *Controller) handleTyping(connID core.ConnectionID, data []byte, start bool) {
	var p struct {
		ChannelID domain.ChannelID `json:"channelId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		return
	}
	ctl.Hub.Typing(connID, p.ChannelID, start)
}
