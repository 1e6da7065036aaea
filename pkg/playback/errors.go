package playback

import "errors"

var (
	// ErrInsufficientKeyframes is returned when playback is requested with
	// fewer than two keyframes.
	ErrInsufficientKeyframes = errors.New("record at least 2 points first")

	// ErrAlreadyPlaying is returned when starting while a session is live.
	ErrAlreadyPlaying = errors.New("playback already active")

	// ErrInvalidSpeed is returned for a non-positive or non-finite speed.
	ErrInvalidSpeed = errors.New("playback speed must be a positive number")
)
