package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxcord/voxcord/internal/core"
	"github.com/voxcord/voxcord/internal/domain"
)

func (ctl *Controller) handleVoiceJoin(connID core.ConnectionID, data []byte) {
	var p struct {
		ChannelID domain.ChannelID `json:"channelId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		log.Warn().Str("module", "signal").Msg("bad voice:join payload")
		return
	}
	ctl.Hub.JoinVoice(connID, p.ChannelID)
}

func (ctl *Controller) handleVoiceMute(connID core.ConnectionID, data []byte) {
	var p struct {
		Muted bool `json:"muted"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	ctl.Hub.SetMute(connID, p.Muted)
}

func (ctl *Controller) handleVoiceDeafen(connID core.ConnectionID, data []byte) {
	var p struct {
		Deafened bool `json:"deafened"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	ctl.Hub.SetDeafen(connID, p.Deafened)
}

func (ctl *Controller) handleScreen(connID core.ConnectionID, data []byte, start bool) {
	var p struct {
		ChannelID domain.ChannelID `json:"channelId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		log.Warn().Str("module", "signal").Msg("bad screen payload")
		return
	}
	ctl.Hub.SetStreaming(connID, p.ChannelID, start)
}
