package protocol

import "errors"

var (
	// ErrUnknownCommand is returned for a command name outside the whitelist.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMissingField is returned when a command lacks a required argument.
	ErrMissingField = errors.New("missing command field")
)
