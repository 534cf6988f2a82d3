package vision

import "errors"

// Sentinel kinds for vision errors.
var (
	ErrEmptyFrame  = errors.New("empty frame")
	ErrStatus      = errors.New("unexpected status")
	ErrBadAnalysis = errors.New("analysis out of range")
)
