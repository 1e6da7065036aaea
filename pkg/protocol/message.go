// Package protocol defines the WebSocket message types spoken between the
// path daemon, its control surfaces and the 3D viewer.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/teslashibe/cinepath/pkg/camera"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Control surface → daemon
	TypeCommand MessageType = "command" // One engine command

	// Daemon → control surfaces
	TypeKeyframes MessageType = "keyframes" // Full keyframe sequence
	TypePlayback  MessageType = "playback"  // Playback active flag
	TypeOrbit     MessageType = "orbit"     // Orbit active flag
	TypeCountdown MessageType = "countdown" // Clapperboard step
	TypeSettings  MessageType = "settings"  // Speed and clapperboard preference
	TypeNotice    MessageType = "notice"    // User-visible failure
	TypeAck       MessageType = "ack"       // Command accepted

	// Daemon → viewer
	TypeSetPose MessageType = "set_pose" // Immediate cut
	TypeFlyTo   MessageType = "fly_to"   // Tweened flight
	TypeRotate  MessageType = "rotate"   // One orbit increment

	// Viewer → daemon
	TypeView   MessageType = "view"   // Current pose and center picks
	TypeLanded MessageType = "landed" // A flight finished

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Control Message Types
// =============================================================================

// CommandData is one command from a control surface. Only the fields the
// command needs are read.
type CommandData struct {
	Command      string          `json:"command"`                // "RECORD", "PLAY", ...
	Index        *int            `json:"index,omitempty"`        // REVISIT, DELETE
	Value        *float64        `json:"value,omitempty"`        // SET_SPEED, per-tick speed
	Slider       *int            `json:"slider,omitempty"`       // SET_SPEED, raw 1..100
	Clapperboard bool            `json:"clapperboard,omitempty"` // PLAY
	Keyframes    json.RawMessage `json:"keyframes,omitempty"`    // IMPORT, wire-format list
}

// FlagData carries an on/off state
type FlagData struct {
	Active bool `json:"active"`
}

// CountdownData is one clapperboard step; 0 is the flash
type CountdownData struct {
	Step int `json:"step"`
}

// SettingsData mirrors the control-surface preferences
type SettingsData struct {
	Speed        float64 `json:"speed"`  // per tick
	Slider       int     `json:"slider"` // 1..100
	Clapperboard bool    `json:"clapperboard"`
}

// NoticeData is a user-visible failure
type NoticeData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AckData confirms a command was executed
type AckData struct {
	Command string `json:"command"`
}

// =============================================================================
// Viewer Message Types
// =============================================================================

// Point is a world-space position
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PointFrom converts a vector to a Point
func PointFrom(v mgl64.Vec3) Point {
	return Point{X: v[0], Y: v[1], Z: v[2]}
}

// Vec3 converts a Point to a vector
func (p Point) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{p.X, p.Y, p.Z}
}

// PoseData is an immediate camera cut
type PoseData struct {
	Pose camera.Pose `json:"pose"`
}

// FlyToData asks the viewer to tween to a pose
type FlyToData struct {
	ID       string      `json:"id"`
	Pose     camera.Pose `json:"pose"`
	Duration float64     `json:"duration"` // seconds
}

// RotateData is one orbit increment about the vertical axis through Pivot
type RotateData struct {
	Pivot   Point   `json:"pivot"`
	Radians float64 `json:"radians"`
}

// ViewData is the viewer's state, sent whenever the camera moves
type ViewData struct {
	Pose   camera.Pose `json:"pose"`
	Width  int         `json:"width"`
	Height int         `json:"height"`

	// Picks at the viewport center; nil when nothing is under it
	CenterDepth  *Point `json:"center_depth,omitempty"`
	CenterGround *Point `json:"center_ground,omitempty"`
}

// LandedData reports a finished flight
type LandedData struct {
	ID string `json:"id"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
