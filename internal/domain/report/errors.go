package report

import "errors"

// Sentinel kinds for reporting errors.
var (
	ErrUnsupportedServer = errors.New("server not accepted by the statistics service")
	ErrUnknownStage      = errors.New("unknown stage")
	ErrNotMaxStars       = errors.New("non-maximum clear")
	ErrUnknownDrop       = errors.New("unknown drop present")
	ErrUploadPending     = errors.New("upload pending")
	ErrUploadFailed      = errors.New("upload failed")
	ErrNotStarted        = errors.New("report pipeline not started")
)
