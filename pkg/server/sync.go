package server

import (
	"log/slog"

	fws "github.com/gofiber/websocket/v2"
	"github.com/teslashibe/cinepath/internal/log"
	"github.com/teslashibe/cinepath/pkg/engine"
	"github.com/teslashibe/cinepath/pkg/hub"
	"github.com/teslashibe/cinepath/pkg/keyframe"
	"github.com/teslashibe/cinepath/pkg/protocol"
)

// HubSink broadcasts engine sync events to every /ws/sync client.
type HubSink struct {
	hub *hub.Hub
	log *slog.Logger
}

var _ engine.SyncSink = (*HubSink)(nil)

// NewHubSink creates a sink that broadcasts on h.
func NewHubSink(h *hub.Hub) *HubSink {
	return &HubSink{hub: h, log: log.Component("sync")}
}

func (s *HubSink) SyncKeyframes(seq []keyframe.Keyframe) {
	s.broadcast(protocol.NewKeyframesMessage(seq))
}

func (s *HubSink) SyncPlayback(active bool) {
	s.broadcast(protocol.NewPlaybackMessage(active))
}

func (s *HubSink) SyncOrbit(active bool) {
	s.broadcast(protocol.NewOrbitMessage(active))
}

func (s *HubSink) SyncCountdown(step int) {
	s.broadcast(protocol.NewCountdownMessage(step))
}

func (s *HubSink) SyncSettings(st engine.Settings) {
	s.broadcast(protocol.NewSettingsMessage(st))
}

func (s *HubSink) Notice(err error) {
	s.broadcast(protocol.NewNoticeMessage(err))
}

func (s *HubSink) broadcast(msg *protocol.Message, err error) {
	if err != nil {
		s.log.Error("failed to build sync message", "error", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		s.log.Error("failed to encode sync message", "error", err)
		return
	}
	s.hub.Broadcast(hub.NewJSONMessage(data))
}

// greeting is the state a new sync client starts from.
func greeting(eng *engine.Engine) []hub.Message {
	st := eng.Status()
	var out []hub.Message
	add := func(msg *protocol.Message, err error) {
		if err != nil {
			return
		}
		if data, err := msg.Bytes(); err == nil {
			out = append(out, hub.NewJSONMessage(data))
		}
	}
	add(protocol.NewKeyframesMessage(eng.Keyframes()))
	add(protocol.NewSettingsMessage(eng.Settings()))
	add(protocol.NewPlaybackMessage(st.Active))
	add(protocol.NewOrbitMessage(st.Orbiting))
	return out
}

// handleSyncWS attaches a sync client to the hub.
func (s *Server) handleSyncWS(c *fws.Conn) {
	client := hub.NewClient(s.sync, c, greeting(s.eng)...)
	if client == nil {
		c.Close()
		return
	}
	s.log.Debug("sync client connected", "id", client.ID)
	client.Run()
	s.log.Debug("sync client disconnected", "id", client.ID)
}
