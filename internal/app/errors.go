package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrQueueFull         = errors.New("event queue full")
	ErrUnknownTag        = errors.New("unknown event tag")
	ErrMissingDependency = errors.New("missing dependency")
)
