package protocol

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/cinepath/pkg/camera"
	"github.com/teslashibe/cinepath/pkg/engine"
	"github.com/teslashibe/cinepath/pkg/keyframe"
	"github.com/teslashibe/cinepath/pkg/orbit"
	"github.com/teslashibe/cinepath/pkg/playback"
)

// Speed slider range. Control surfaces send the raw slider value; the engine
// works in progress per tick.
const (
	SliderMin     = 1
	SliderMax     = 100
	SliderDivisor = 10000.0
)

// SpeedFromSlider maps a raw slider value to a per-tick speed. Out of range
// values are clamped.
func SpeedFromSlider(raw int) float64 {
	raw = min(max(raw, SliderMin), SliderMax)
	return float64(raw) / SliderDivisor
}

// SliderFromSpeed is the inverse of SpeedFromSlider, rounded and clamped.
func SliderFromSpeed(speed float64) int {
	raw := int(math.Round(speed * SliderDivisor))
	return min(max(raw, SliderMin), SliderMax)
}

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewCommandMessage creates a command message
func NewCommandMessage(cmd CommandData) (*Message, error) {
	return NewMessage(TypeCommand, cmd)
}

// NewKeyframesMessage creates a keyframe sync message. The data is the plain
// wire-format list.
func NewKeyframesMessage(seq []keyframe.Keyframe) (*Message, error) {
	if seq == nil {
		seq = []keyframe.Keyframe{}
	}
	return NewMessage(TypeKeyframes, seq)
}

// NewPlaybackMessage creates a playback state message
func NewPlaybackMessage(active bool) (*Message, error) {
	return NewMessage(TypePlayback, FlagData{Active: active})
}

// NewOrbitMessage creates an orbit state message
func NewOrbitMessage(active bool) (*Message, error) {
	return NewMessage(TypeOrbit, FlagData{Active: active})
}

// NewCountdownMessage creates a clapperboard step message
func NewCountdownMessage(step int) (*Message, error) {
	return NewMessage(TypeCountdown, CountdownData{Step: step})
}

// NewSettingsMessage creates a settings message
func NewSettingsMessage(s engine.Settings) (*Message, error) {
	return NewMessage(TypeSettings, SettingsData{
		Speed:        s.Speed,
		Slider:       SliderFromSpeed(s.Speed),
		Clapperboard: s.Clapperboard,
	})
}

// NewNoticeMessage creates a notice message for a failed command
func NewNoticeMessage(err error) (*Message, error) {
	return NewMessage(TypeNotice, NoticeData{
		Code:    NoticeCode(err),
		Message: err.Error(),
	})
}

// NewAckMessage creates an ack message
func NewAckMessage(command string) (*Message, error) {
	return NewMessage(TypeAck, AckData{Command: command})
}

// NewSetPoseMessage creates an immediate cut message
func NewSetPoseMessage(p camera.Pose) (*Message, error) {
	return NewMessage(TypeSetPose, PoseData{Pose: p})
}

// NewFlyToMessage creates a flight message
func NewFlyToMessage(id string, p camera.Pose, seconds float64) (*Message, error) {
	return NewMessage(TypeFlyTo, FlyToData{ID: id, Pose: p, Duration: seconds})
}

// NewRotateMessage creates an orbit increment message
func NewRotateMessage(pivot Point, radians float64) (*Message, error) {
	return NewMessage(TypeRotate, RotateData{Pivot: pivot, Radians: radians})
}

// NewViewMessage creates a viewer state message
func NewViewMessage(v ViewData) (*Message, error) {
	return NewMessage(TypeView, v)
}

// NewLandedMessage creates a flight completion message
func NewLandedMessage(id string) (*Message, error) {
	return NewMessage(TypeLanded, LandedData{ID: id})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Will be set by NewMessage
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetCommandData extracts command data from a message
func (m *Message) GetCommandData() (*CommandData, error) {
	var data CommandData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetKeyframes extracts a keyframe sync list from a message
func (m *Message) GetKeyframes() ([]keyframe.Keyframe, error) {
	return keyframe.Decode(m.Data)
}

// GetFlagData extracts a playback or orbit flag from a message
func (m *Message) GetFlagData() (*FlagData, error) {
	var data FlagData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCountdownData extracts a countdown step from a message
func (m *Message) GetCountdownData() (*CountdownData, error) {
	var data CountdownData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSettingsData extracts settings from a message
func (m *Message) GetSettingsData() (*SettingsData, error) {
	var data SettingsData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetNoticeData extracts a notice from a message
func (m *Message) GetNoticeData() (*NoticeData, error) {
	var data NoticeData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAckData extracts an ack from a message
func (m *Message) GetAckData() (*AckData, error) {
	var data AckData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPoseData extracts a cut from a message
func (m *Message) GetPoseData() (*PoseData, error) {
	var data PoseData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFlyToData extracts a flight from a message
func (m *Message) GetFlyToData() (*FlyToData, error) {
	var data FlyToData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetRotateData extracts an orbit increment from a message
func (m *Message) GetRotateData() (*RotateData, error) {
	var data RotateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetViewData extracts viewer state from a message
func (m *Message) GetViewData() (*ViewData, error) {
	var data ViewData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetLandedData extracts a flight completion from a message
func (m *Message) GetLandedData() (*LandedData, error) {
	var data LandedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// =============================================================================
// Commands
// =============================================================================

// ParseCommand turns command data into an engine command. Names outside the
// whitelist fail with ErrUnknownCommand; a bad IMPORT payload fails with
// keyframe.ErrMalformedImport.
func ParseCommand(d CommandData) (engine.Command, error) {
	switch d.Command {
	case engine.NameRecord:
		return engine.Record{}, nil
	case engine.NamePlay:
		return engine.Play{Clapperboard: d.Clapperboard}, nil
	case engine.NameStop:
		return engine.Stop{}, nil
	case engine.NameSpin:
		return engine.Spin{}, nil
	case engine.NameRevisit:
		if d.Index == nil {
			return nil, fmt.Errorf("%w: %s needs index", ErrMissingField, d.Command)
		}
		return engine.Revisit{Index: *d.Index}, nil
	case engine.NameDelete:
		if d.Index == nil {
			return nil, fmt.Errorf("%w: %s needs index", ErrMissingField, d.Command)
		}
		return engine.Delete{Index: *d.Index}, nil
	case engine.NameClearAll:
		return engine.ClearAll{}, nil
	case engine.NameImport:
		if len(d.Keyframes) == 0 {
			return nil, fmt.Errorf("%w: %s needs keyframes", ErrMissingField, d.Command)
		}
		seq, err := keyframe.Decode(d.Keyframes)
		if err != nil {
			return nil, err
		}
		return engine.Import{Keyframes: seq}, nil
	case engine.NameSetSpeed:
		switch {
		case d.Value != nil:
			return engine.SetSpeed{Value: *d.Value}, nil
		case d.Slider != nil:
			return engine.SetSpeed{Value: SpeedFromSlider(*d.Slider)}, nil
		default:
			return nil, fmt.Errorf("%w: %s needs value or slider", ErrMissingField, d.Command)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, d.Command)
	}
}

// NoticeCode names a user-visible failure for control surfaces.
func NoticeCode(err error) string {
	switch {
	case errors.Is(err, playback.ErrInsufficientKeyframes):
		return "insufficient_keyframes"
	case errors.Is(err, playback.ErrAlreadyPlaying):
		return "already_playing"
	case errors.Is(err, playback.ErrInvalidSpeed):
		return "invalid_speed"
	case errors.Is(err, orbit.ErrNoPivotTarget):
		return "no_pivot_target"
	case errors.Is(err, keyframe.ErrMalformedImport):
		return "malformed_import"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	default:
		return "error"
	}
}
