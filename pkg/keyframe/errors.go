package keyframe

import "errors"

var (
	// ErrMalformedImport is returned when an import payload is not a valid
	// keyframe list.
	ErrMalformedImport = errors.New("malformed keyframe import")

	// ErrIndexOutOfRange is returned by Get for a stale or invalid index.
	ErrIndexOutOfRange = errors.New("keyframe index out of range")
)
