package maahost

import "errors"

var (
	// ErrNoHostContext is returned when the session asks for a frame or a
	// control change outside a host callback.
	ErrNoHostContext = errors.New("no host context bound")
	// ErrCapture is returned when the controller has no frame.
	ErrCapture = errors.New("screen capture failed")
	// ErrOverride is returned when the host rejects a pipeline override.
	ErrOverride = errors.New("pipeline override rejected")
)
