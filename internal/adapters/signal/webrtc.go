package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxcord/voxcord/internal/core"
	"github.com/voxcord/voxcord/internal/domain"
)

// handleWebRTC forwards one negotiation frame. The payload is opaque by
// design: this server never parses SDP or candidates, so the browsers can
// evolve the negotiation protocol without touching the relay.
func (ctl *Controller) handleWebRTC(connID core.ConnectionID, kind string, data []byte) {
	var p struct {
		TargetUserID domain.UserID   `json:"targetUserId"`
		Payload      json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.TargetUserID == "" {
		log.Warn().Str("module", "signal").Str("kind", kind).Msg("bad signaling payload")
		return
	}
	ctl.Hub.Relay(kind, connID, p.TargetUserID, p.Payload)
}
