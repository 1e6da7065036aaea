package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/teslashibe/cinepath/pkg/protocol"
)

// handleControlWS reads commands from a control surface. Each command is
// answered with an ack or a notice on the same connection; state changes
// arrive separately on /ws/sync.
func (s *Server) handleControlWS(c *websocket.Conn) {
	remote := c.RemoteAddr().String()
	s.log.Info("control connected", "remote", remote)
	defer func() {
		c.Close()
		s.log.Info("control disconnected", "remote", remote)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("control read error", "error", err)
			}
			return
		}

		reply := s.handleControlMessage(data)
		if reply == nil {
			continue
		}
		out, err := reply.Bytes()
		if err != nil {
			continue
		}
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

// handleControlMessage runs one inbound message and returns the reply, if
// any.
func (s *Server) handleControlMessage(data []byte) *protocol.Message {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.log.Debug("invalid control message", "error", err)
		return nil
	}

	switch msg.Type {
	case protocol.TypeCommand:
		cmdData, err := msg.GetCommandData()
		if err != nil {
			return mustMessage(protocol.NewNoticeMessage(err))
		}
		s.commandsReceived.Add(1)

		cmd, err := protocol.ParseCommand(*cmdData)
		if errors.Is(err, protocol.ErrUnknownCommand) {
			// Surfaces may be newer than the daemon
			s.log.Debug("ignoring unknown command", "command", cmdData.Command)
			return nil
		}
		if err != nil {
			s.commandsRejected.Add(1)
			return mustMessage(protocol.NewNoticeMessage(err))
		}

		if err := s.dispatch(context.Background(), cmd); err != nil {
			s.commandsRejected.Add(1)
			return mustMessage(protocol.NewNoticeMessage(err))
		}
		return mustMessage(protocol.NewAckMessage(cmd.Name()))

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return nil
		}
		return mustMessage(protocol.NewPongMessage(ping.ID, ping.Timestamp, time.Now().UnixMilli()))

	default:
		s.log.Debug("unexpected control message", "type", msg.Type)
		return nil
	}
}

func mustMessage(msg *protocol.Message, err error) *protocol.Message {
	if err != nil {
		return nil
	}
	return msg
}
