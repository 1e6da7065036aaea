package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/cinepath/pkg/engine"
	"github.com/teslashibe/cinepath/pkg/keyframe"
	"github.com/teslashibe/cinepath/pkg/protocol"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	engine.Status
	SyncClients     int  `json:"syncClients"`
	ViewerConnected bool `json:"viewerConnected"`
}

// Metrics is the body of GET /metrics.
type Metrics struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Frames           uint64  `json:"frames"`
	CommandsReceived uint64  `json:"commands_received"`
	CommandsRejected uint64  `json:"commands_rejected"`
	SyncClients      int     `json:"sync_clients"`
	SyncSent         uint64  `json:"sync_sent"`
	SyncDropped      uint64  `json:"sync_dropped"`
	ViewerConnected  bool    `json:"viewer_connected"`
	ViewerSent       uint64  `json:"viewer_sent"`
	ViewerReceived   uint64  `json:"viewer_received"`
	ViewerDropped    uint64  `json:"viewer_dropped"`
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleMetrics returns counters
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	sent, dropped := s.sync.Stats()
	m := Metrics{
		UptimeSeconds:    time.Since(s.started).Seconds(),
		Frames:           s.loop.Frames(),
		CommandsReceived: s.commandsReceived.Load(),
		CommandsRejected: s.commandsRejected.Load(),
		SyncClients:      s.sync.ClientCount(),
		SyncSent:         sent,
		SyncDropped:      dropped,
	}
	if s.viewer != nil {
		m.ViewerConnected = s.viewer.Connected()
		m.ViewerSent, m.ViewerReceived, m.ViewerDropped = s.viewer.Stats()
	}
	return c.JSON(m)
}

// handleStatus returns the engine snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{
		Status:      s.eng.Status(),
		SyncClients: s.sync.ClientCount(),
	}
	if s.viewer != nil {
		resp.ViewerConnected = s.viewer.Connected()
	}
	return c.JSON(resp)
}

// handleExport returns the keyframes in the wire format
func (s *Server) handleExport(c *fiber.Ctx) error {
	data, err := keyframe.EncodeIndent(s.eng.Keyframes())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="cesium_path.json"`)
	return c.Send(data)
}

// handleImport replaces the keyframes with the request body
func (s *Server) handleImport(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)

	err := s.importJSON(context.Background(), body)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"imported": len(s.eng.Keyframes())})
	case errors.Is(err, keyframe.ErrMalformedImport):
		return c.Status(fiber.StatusBadRequest).JSON(noticeBody(err))
	case isTimeout(err):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// handleCommandHTTP runs one command from a JSON body
func (s *Server) handleCommandHTTP(c *fiber.Ctx) error {
	var data protocol.CommandData
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.commandsReceived.Add(1)

	cmd, err := protocol.ParseCommand(data)
	if err != nil {
		s.commandsRejected.Add(1)
		return c.Status(fiber.StatusBadRequest).JSON(noticeBody(err))
	}

	err = s.dispatch(context.Background(), cmd)
	switch {
	case err == nil:
		return c.JSON(protocol.AckData{Command: cmd.Name()})
	case isTimeout(err):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case engine.IsUserError(err):
		s.commandsRejected.Add(1)
		return c.Status(fiber.StatusConflict).JSON(noticeBody(err))
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

func noticeBody(err error) protocol.NoticeData {
	return protocol.NoticeData{Code: protocol.NoticeCode(err), Message: err.Error()}
}
